package cache

import (
	"context"
	"strconv"
	"time"
)

// Cached entities and how long a copy may live. Post snapshots carry
// counters, so they expire sooner than author profiles.
const (
	UserTTL = 5 * time.Minute
	PostTTL = 2 * time.Minute
)

// UserKey is the cache key of an author profile.
func UserKey(userID uint) string { return "author:" + strconv.FormatUint(uint64(userID), 10) }

// PostKey is the cache key of a post snapshot.
func PostKey(postID uint) string { return "post:" + strconv.FormatUint(uint64(postID), 10) }

// Invalidate drops key. Failures are counted by the client hook and otherwise ignored.
func Invalidate(ctx context.Context, key string) {
	if c := client; c != nil {
		c.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) { Invalidate(ctx, UserKey(userID)) }

func InvalidatePost(ctx context.Context, postID uint) { Invalidate(ctx, PostKey(postID)) }
