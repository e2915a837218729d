package service

import (
	"context"
	"strings"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTitleLen   = 300
	maxContentLen = 20000
	maxImages     = 10
)

type PostService struct {
	postRepo repository.PostRepository
	tx       repository.Transactor
}

type CreatePostInput struct {
	UserID  uint
	Title   string
	Content string
	Images  []string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

func NewPostService(postRepo repository.PostRepository, tx repository.Transactor) *PostService {
	return &PostService{postRepo: postRepo, tx: tx}
}

// CreatePost stores a new post with both counters at zero.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost",
		attribute.Int64("user.id", int64(in.UserID)))
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 20000 characters)")
	}
	if len(title) > maxTitleLen {
		return nil, models.NewValidationError("Title too long (max 300 characters)")
	}
	if len(in.Images) > maxImages {
		return nil, models.NewValidationError("Too many images (max 10)")
	}

	images := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}

	post := &models.Post{
		UserID:  in.UserID,
		Title:   title,
		Content: in.Content,
		Images:  images,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, surface(ctx, span, "PostService", "CreatePost", err,
			observability.Fields{"user_id": in.UserID})
	}

	created, err := s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, surface(ctx, span, "PostService", "CreatePost", err,
			observability.Fields{"post_id": post.ID})
	}
	return created, nil
}

// DeletePost removes a post owned by the caller together with its comments
// and every like on the post or its comments.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost",
		attribute.Int64("post.id", int64(in.PostID)))
	defer span.End()

	var deleted *models.Post
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		post, err := repos.Posts.GetForUpdate(ctx, in.PostID)
		if err != nil {
			return err
		}
		if post.UserID != in.UserID {
			return models.NewForbiddenError("You can only delete your own posts")
		}

		snapshot, err := repos.Posts.GetByID(ctx, in.PostID)
		if err != nil {
			return err
		}

		commentIDs, err := repos.Comments.IDsByPost(ctx, in.PostID)
		if err != nil {
			return err
		}
		if err := repos.Comments.LockByIDs(ctx, commentIDs); err != nil {
			return err
		}
		if _, err := repos.Likes.DeleteByComments(ctx, commentIDs); err != nil {
			return err
		}
		if _, err := repos.Likes.DeleteByPost(ctx, in.PostID); err != nil {
			return err
		}
		if _, err := repos.Comments.DeleteByIDs(ctx, commentIDs); err != nil {
			return err
		}
		if err := repos.Posts.Delete(ctx, in.PostID); err != nil {
			return err
		}

		deleted = snapshot
		return nil
	})
	if err != nil {
		return nil, surface(ctx, span, "PostService", "DeletePost", err,
			observability.Fields{"post_id": in.PostID, "user_id": in.UserID})
	}

	cache.InvalidatePost(ctx, in.PostID)
	return deleted, nil
}
