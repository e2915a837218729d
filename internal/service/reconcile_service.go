package service

import (
	"context"
	"log/slog"
	"time"

	"socialapp/internal/cache"
	"socialapp/internal/models"
	"socialapp/internal/observability"
	"socialapp/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const reconcileBatchSize = 200

// ReconcileService recomputes denormalized counters from the like and
// comment rows and repairs any drift it finds.
type ReconcileService struct {
	postRepo repository.PostRepository
	tx       repository.Transactor
}

// Report summarizes a reconciliation pass.
type Report struct {
	PostsScanned     int `json:"posts_scanned"`
	CommentsScanned  int `json:"comments_scanned"`
	PostsRepaired    int `json:"posts_repaired"`
	CommentsRepaired int `json:"comments_repaired"`
}

func (r *Report) add(other Report) {
	r.PostsScanned += other.PostsScanned
	r.CommentsScanned += other.CommentsScanned
	r.PostsRepaired += other.PostsRepaired
	r.CommentsRepaired += other.CommentsRepaired
}

func NewReconcileService(postRepo repository.PostRepository, tx repository.Transactor) *ReconcileService {
	return &ReconcileService{postRepo: postRepo, tx: tx}
}

// ReconcilePost repairs one post's counters and the like counters of all of
// its comments.
func (s *ReconcileService) ReconcilePost(ctx context.Context, postID uint) (*Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReconcileService", "ReconcilePost",
		attribute.Int64("post.id", int64(postID)))
	defer span.End()

	report, err := s.reconcilePost(ctx, postID)
	if err != nil {
		return nil, surface(ctx, span, "ReconcileService", "ReconcilePost", err,
			observability.Fields{"post_id": postID})
	}
	return report, nil
}

func (s *ReconcileService) reconcilePost(ctx context.Context, postID uint) (*Report, error) {
	report := &Report{PostsScanned: 1}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		post, err := repos.Posts.GetForUpdate(ctx, postID)
		if err != nil {
			return err
		}

		likes, err := repos.Likes.CountByTarget(ctx, models.PostTarget(postID))
		if err != nil {
			return err
		}
		comments, err := repos.Comments.CountByPost(ctx, postID)
		if err != nil {
			return err
		}
		if int64(post.LikesCount) != likes || int64(post.CommentsCount) != comments {
			recordDrift(ctx, "post", postID, "likes_count", post.LikesCount, likes)
			recordDrift(ctx, "post", postID, "comments_count", post.CommentsCount, comments)
			if err := repos.Posts.SetCounters(ctx, postID, int(likes), int(comments)); err != nil {
				return err
			}
			report.PostsRepaired++
		}

		commentIDs, err := repos.Comments.IDsByPost(ctx, postID)
		if err != nil {
			return err
		}
		for _, id := range commentIDs {
			comment, err := repos.Comments.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			report.CommentsScanned++
			n, err := repos.Likes.CountByTarget(ctx, models.CommentTarget(id))
			if err != nil {
				return err
			}
			if int64(comment.LikesCount) == n {
				continue
			}
			recordDrift(ctx, "comment", id, "likes_count", comment.LikesCount, n)
			if err := repos.Comments.SetLikesCount(ctx, id, int(n)); err != nil {
				return err
			}
			report.CommentsRepaired++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.PostsRepaired > 0 || report.CommentsRepaired > 0 {
		cache.InvalidatePost(ctx, postID)
	}
	return report, nil
}

func recordDrift(ctx context.Context, entity string, id uint, counter string, stored int, actual int64) {
	if int64(stored) == actual {
		return
	}
	observability.CounterDriftRepairs.WithLabelValues(entity, counter).Inc()
	observability.GlobalLogger.WarnContext(ctx, "counter drift repaired",
		slog.String("entity", entity),
		slog.Uint64("id", uint64(id)),
		slog.String("counter", counter),
		slog.Int("stored", stored),
		slog.Int64("actual", actual),
	)
}

// ReconcileAll walks every post in id order, one transaction per post.
// Posts deleted mid-scan are skipped.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (*Report, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ReconcileService", "ReconcileAll")
	defer span.End()

	total := &Report{}
	var after uint
	for {
		ids, err := s.postRepo.ListIDs(ctx, after, reconcileBatchSize)
		if err != nil {
			return nil, surface(ctx, span, "ReconcileService", "ReconcileAll", err,
				observability.Fields{"after_id": after})
		}
		if len(ids) == 0 {
			break
		}
		for _, id := range ids {
			report, err := s.reconcilePost(ctx, id)
			if models.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, surface(ctx, span, "ReconcileService", "ReconcileAll", err,
					observability.Fields{"post_id": id})
			}
			total.add(*report)
		}
		after = ids[len(ids)-1]
	}

	span.AddAttributes(
		attribute.Int("reconcile.posts_repaired", total.PostsRepaired),
		attribute.Int("reconcile.comments_repaired", total.CommentsRepaired),
	)
	return total, nil
}

// Run reconciles every interval until ctx is cancelled.
func (s *ReconcileService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx := observability.EnsureCorrelationID(ctx)
			observability.LogAsyncOperationStart(runCtx, "reconcile_counters", nil)
			report, err := s.ReconcileAll(runCtx)
			if err != nil {
				observability.LogAsyncOperationError(runCtx, "reconcile_counters", err, nil)
				continue
			}
			observability.LogAsyncOperationEnd(runCtx, "reconcile_counters", observability.Fields{
				"posts_scanned":     report.PostsScanned,
				"posts_repaired":    report.PostsRepaired,
				"comments_repaired": report.CommentsRepaired,
			})
		}
	}
}
