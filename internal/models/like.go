package models

import (
	"errors"
	"fmt"
	"time"
)

// TargetKind names what a like points at.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// ErrInvalidLikeTarget is returned when a like would reference neither or
// both of a post and a comment.
var ErrInvalidLikeTarget = errors.New("like must target exactly one post or comment")

// LikeTarget identifies the single entity a like belongs to.
type LikeTarget struct {
	Kind TargetKind
	ID   uint
}

// PostTarget returns a target for the given post.
func PostTarget(postID uint) LikeTarget {
	return LikeTarget{Kind: TargetPost, ID: postID}
}

// CommentTarget returns a target for the given comment.
func CommentTarget(commentID uint) LikeTarget {
	return LikeTarget{Kind: TargetComment, ID: commentID}
}

// Validate checks the target names a known kind and a non-zero id.
func (t LikeTarget) Validate() error {
	if t.ID == 0 {
		return ErrInvalidLikeTarget
	}
	switch t.Kind {
	case TargetPost, TargetComment:
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidLikeTarget, t.Kind)
	}
}

func (t LikeTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// Like records that a user likes a post or a comment. Exactly one of PostID
// and CommentID is set; the database enforces this with a CHECK constraint
// and a unique index per (user, target).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;uniqueIndex:idx_likes_user_comment" json:"user_id"`
	PostID    *uint     `gorm:"uniqueIndex:idx_likes_user_post;index;check:chk_likes_single_target,(post_id IS NULL) <> (comment_id IS NULL)" json:"post_id,omitempty"`
	CommentID *uint     `gorm:"uniqueIndex:idx_likes_user_comment;index" json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewLike builds a like for the user on the given target.
func NewLike(userID uint, target LikeTarget) (*Like, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	id := target.ID
	like := &Like{UserID: userID}
	if target.Kind == TargetPost {
		like.PostID = &id
	} else {
		like.CommentID = &id
	}
	return like, nil
}

// Target returns the entity this like points at.
func (l *Like) Target() LikeTarget {
	if l.PostID != nil {
		return PostTarget(*l.PostID)
	}
	if l.CommentID != nil {
		return CommentTarget(*l.CommentID)
	}
	return LikeTarget{}
}

// LikeState is the outcome of a toggle.
type LikeState string

const (
	LikeAdded   LikeState = "added"
	LikeRemoved LikeState = "removed"
)
