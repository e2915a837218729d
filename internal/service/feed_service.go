package service

import (
	"context"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPreviewSize = 3
	previewConcurrency = 8
)

// FeedService serves read-only paginated views of posts.
type FeedService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	userRepo    repository.UserRepository
	previewSize int
}

func NewFeedService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	userRepo repository.UserRepository,
	previewSize int,
) *FeedService {
	if previewSize <= 0 {
		previewSize = DefaultPreviewSize
	}
	return &FeedService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		userRepo:    userRepo,
		previewSize: previewSize,
	}
}

// ListFeed returns posts newest first, each with a preview of its most
// recent top-level comments.
func (s *FeedService) ListFeed(ctx context.Context, page models.PageRequest) (*models.FeedPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "ListFeed",
		attribute.Int("page", page.Page), attribute.Int("page_size", page.PageSize))
	defer span.End()

	fail := func(err error) (*models.FeedPage, error) {
		return nil, surface(ctx, span, "FeedService", "ListFeed", err,
			observability.Fields{"page": page.Page, "page_size": page.PageSize})
	}

	posts, err := s.postRepo.List(ctx, page.Limit(), page.Offset())
	if err != nil {
		return fail(err)
	}
	total, err := s.postRepo.Count(ctx)
	if err != nil {
		return fail(err)
	}
	if err := s.attachPreviews(ctx, posts); err != nil {
		return fail(err)
	}

	result := models.NewPage(posts, page, total)
	return &result, nil
}

func (s *FeedService) attachPreviews(ctx context.Context, posts []*models.Post) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(previewConcurrency)
	for _, post := range posts {
		post := post
		g.Go(func() error {
			previews, err := s.commentRepo.ListRecentTopLevel(gctx, post.ID, s.previewSize)
			if err != nil {
				return err
			}
			post.RecentComments = previews
			return nil
		})
	}
	return g.Wait()
}

// ListByOwner returns one user's posts newest first, without previews.
func (s *FeedService) ListByOwner(ctx context.Context, ownerID uint, page models.PageRequest) (*models.FeedPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "ListByOwner",
		attribute.Int64("user.id", int64(ownerID)))
	defer span.End()

	fail := func(err error) (*models.FeedPage, error) {
		return nil, surface(ctx, span, "FeedService", "ListByOwner", err,
			observability.Fields{"owner_id": ownerID})
	}

	exists, err := s.userRepo.Exists(ctx, ownerID)
	if err != nil {
		return fail(err)
	}
	if !exists {
		return nil, models.NewNotFoundError("User", ownerID)
	}

	posts, err := s.postRepo.ListByOwner(ctx, ownerID, page.Limit(), page.Offset())
	if err != nil {
		return fail(err)
	}
	total, err := s.postRepo.CountByOwner(ctx, ownerID)
	if err != nil {
		return fail(err)
	}

	result := models.NewPage(posts, page, total)
	return &result, nil
}

// GetPost returns a single post with its author, read through the cache.
func (s *FeedService) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "GetPost",
		attribute.Int64("post.id", int64(postID)))
	defer span.End()

	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(postID), &post, cache.PostTTL, func() error {
		found, err := s.postRepo.GetByID(ctx, postID)
		if err != nil {
			return err
		}
		post = *found
		return nil
	})
	if err != nil {
		return nil, surface(ctx, span, "FeedService", "GetPost", err,
			observability.Fields{"post_id": postID})
	}
	return &post, nil
}
