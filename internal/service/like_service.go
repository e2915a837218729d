package service

import (
	"context"
	"errors"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// LikeService flips a user's like on a post or comment and keeps the
// target's LikesCount equal to its number of like rows.
type LikeService struct {
	tx repository.Transactor
}

// ToggleResult is the outcome of a toggle. Exactly one of Post and Comment
// is set, matching the toggled target.
type ToggleResult struct {
	State   models.LikeState `json:"state"`
	Post    *models.Post     `json:"post,omitempty"`
	Comment *models.Comment  `json:"comment,omitempty"`
}

func NewLikeService(tx repository.Transactor) *LikeService {
	return &LikeService{tx: tx}
}

func (s *LikeService) ToggleLikeOnPost(ctx context.Context, userID, postID uint) (*ToggleResult, error) {
	return s.toggle(ctx, "ToggleLikeOnPost", userID, models.PostTarget(postID))
}

func (s *LikeService) ToggleLikeOnComment(ctx context.Context, userID, commentID uint) (*ToggleResult, error) {
	return s.toggle(ctx, "ToggleLikeOnComment", userID, models.CommentTarget(commentID))
}

func (s *LikeService) toggle(ctx context.Context, method string, userID uint, target models.LikeTarget) (*ToggleResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "LikeService", method,
		attribute.String("like.target", target.String()),
		attribute.Int64("user.id", int64(userID)))
	defer span.End()

	if err := target.Validate(); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	result, err := s.toggleOnce(ctx, userID, target)
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent toggle committed first; run again against its outcome.
		result, err = s.toggleOnce(ctx, userID, target)
	}
	if err != nil {
		return nil, surface(ctx, span, "LikeService", method, err,
			observability.Fields{"target": target.String(), "user_id": userID})
	}

	if result.Post != nil {
		cache.InvalidatePost(ctx, result.Post.ID)
	}
	span.AddAttributes(attribute.String("like.state", string(result.State)))
	observability.LikeToggles.WithLabelValues(string(target.Kind), string(result.State)).Inc()
	return result, nil
}

func (s *LikeService) toggleOnce(ctx context.Context, userID uint, target models.LikeTarget) (*ToggleResult, error) {
	var result ToggleResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := lockTarget(ctx, repos, target); err != nil {
			return err
		}

		existing, err := repos.Likes.Find(ctx, userID, target)
		if err != nil {
			return err
		}

		delta := 1
		result.State = models.LikeAdded
		if existing != nil {
			if err := repos.Likes.Delete(ctx, existing.ID); err != nil {
				return err
			}
			delta = -1
			result.State = models.LikeRemoved
		} else {
			like, err := models.NewLike(userID, target)
			if err != nil {
				return err
			}
			if err := repos.Likes.Create(ctx, like); err != nil {
				return err
			}
		}

		if target.Kind == models.TargetPost {
			if err := repos.Posts.AdjustLikesCount(ctx, target.ID, delta); err != nil {
				return err
			}
			post, err := repos.Posts.GetByID(ctx, target.ID)
			if err != nil {
				return err
			}
			result.Post = post
			return nil
		}

		if err := repos.Comments.AdjustLikesCount(ctx, target.ID, delta); err != nil {
			return err
		}
		comment, err := repos.Comments.GetByID(ctx, target.ID)
		if err != nil {
			return err
		}
		result.Comment = comment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// lockTarget checks the target exists and holds its row until commit, so
// toggles on the same target run one after another.
func lockTarget(ctx context.Context, repos repository.Repositories, target models.LikeTarget) error {
	if target.Kind == models.TargetPost {
		_, err := repos.Posts.GetForUpdate(ctx, target.ID)
		return err
	}
	_, err := repos.Comments.GetForUpdate(ctx, target.ID)
	return err
}
