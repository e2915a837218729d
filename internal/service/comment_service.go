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

const maxCommentLen = 10000

// CommentService maintains comment trees and keeps Post.CommentsCount in
// lockstep with the number of live comment rows.
type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	tx          repository.Transactor
}

type AddCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

type AddReplyInput struct {
	UserID          uint
	ParentCommentID uint
	Content         string
}

type DeleteCommentInput struct {
	UserID    uint
	CommentID uint
}

// CommentResult is a mutated comment together with its post's new counters.
type CommentResult struct {
	Comment *models.Comment `json:"comment"`
	Post    *models.Post    `json:"post"`
}

// DeleteCommentResult reports a cascading delete.
type DeleteCommentResult struct {
	Comment      *models.Comment `json:"comment"`
	Post         *models.Post    `json:"post"`
	DeletedCount int64           `json:"deleted_count"`
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	tx repository.Transactor,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		tx:          tx,
	}
}

func validateCommentContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewValidationError("Content is required")
	}
	if len(content) > maxCommentLen {
		return models.NewValidationError("Comment too long (max 10000 characters)")
	}
	return nil
}

// AddTopLevelComment attaches a comment directly to a post.
func (s *CommentService) AddTopLevelComment(ctx context.Context, in AddCommentInput) (*CommentResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "AddTopLevelComment",
		attribute.Int64("post.id", int64(in.PostID)))
	defer span.End()

	if err := validateCommentContent(in.Content); err != nil {
		return nil, err
	}

	var result CommentResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Posts.GetForUpdate(ctx, in.PostID); err != nil {
			return err
		}
		comment := &models.Comment{
			UserID:  in.UserID,
			PostID:  in.PostID,
			Content: in.Content,
		}
		return s.insertAndCount(ctx, repos, comment, &result)
	})
	if err != nil {
		return nil, surface(ctx, span, "CommentService", "AddTopLevelComment", err,
			observability.Fields{"post_id": in.PostID, "user_id": in.UserID})
	}

	cache.InvalidatePost(ctx, in.PostID)
	observability.CommentMutations.WithLabelValues("create").Inc()
	return &result, nil
}

// AddReply attaches a comment under an existing comment. The reply inherits
// its parent's post.
func (s *CommentService) AddReply(ctx context.Context, in AddReplyInput) (*CommentResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "AddReply",
		attribute.Int64("comment.parent_id", int64(in.ParentCommentID)))
	defer span.End()

	if err := validateCommentContent(in.Content); err != nil {
		return nil, err
	}

	var result CommentResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		parent, err := repos.Comments.GetByID(ctx, in.ParentCommentID)
		if err != nil {
			return err
		}
		if _, err := repos.Posts.GetForUpdate(ctx, parent.PostID); err != nil {
			return err
		}
		// The parent may have been removed while we waited for the post lock.
		if _, err := repos.Comments.GetForUpdate(ctx, parent.ID); err != nil {
			return err
		}
		parentID := parent.ID
		comment := &models.Comment{
			UserID:          in.UserID,
			PostID:          parent.PostID,
			ParentCommentID: &parentID,
			Content:         in.Content,
		}
		return s.insertAndCount(ctx, repos, comment, &result)
	})
	if err != nil {
		return nil, surface(ctx, span, "CommentService", "AddReply", err,
			observability.Fields{"parent_comment_id": in.ParentCommentID, "user_id": in.UserID})
	}

	cache.InvalidatePost(ctx, result.Post.ID)
	observability.CommentMutations.WithLabelValues("reply").Inc()
	return &result, nil
}

func (s *CommentService) insertAndCount(ctx context.Context, repos repository.Repositories, comment *models.Comment, out *CommentResult) error {
	if err := repos.Comments.Create(ctx, comment); err != nil {
		return err
	}
	if err := repos.Posts.AdjustCommentsCount(ctx, comment.PostID, 1); err != nil {
		return err
	}
	created, err := repos.Comments.GetByID(ctx, comment.ID)
	if err != nil {
		return err
	}
	post, err := repos.Posts.GetByID(ctx, comment.PostID)
	if err != nil {
		return err
	}
	out.Comment = created
	out.Post = post
	return nil
}

// DeleteComment removes a comment and its whole reply subtree, along with
// every like on the removed comments, and decrements the post's counter by
// the number of rows removed.
func (s *CommentService) DeleteComment(ctx context.Context, in DeleteCommentInput) (*DeleteCommentResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "DeleteComment",
		attribute.Int64("comment.id", int64(in.CommentID)))
	defer span.End()

	var result DeleteCommentResult
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		comment, err := repos.Comments.GetByID(ctx, in.CommentID)
		if err != nil {
			return err
		}
		if comment.UserID != in.UserID {
			return models.NewForbiddenError("You can only delete your own comments")
		}
		if _, err := repos.Posts.GetForUpdate(ctx, comment.PostID); err != nil {
			return err
		}
		if _, err := repos.Comments.GetForUpdate(ctx, comment.ID); err != nil {
			return err
		}

		subtree, err := collectSubtree(ctx, repos.Comments, comment.ID)
		if err != nil {
			return err
		}
		if err := repos.Comments.LockByIDs(ctx, subtree); err != nil {
			return err
		}
		if _, err := repos.Likes.DeleteByComments(ctx, subtree); err != nil {
			return err
		}
		deleted, err := repos.Comments.DeleteByIDs(ctx, subtree)
		if err != nil {
			return err
		}
		if err := repos.Posts.AdjustCommentsCount(ctx, comment.PostID, -int(deleted)); err != nil {
			return err
		}
		post, err := repos.Posts.GetByID(ctx, comment.PostID)
		if err != nil {
			return err
		}

		result = DeleteCommentResult{Comment: comment, Post: post, DeletedCount: deleted}
		return nil
	})
	if err != nil {
		return nil, surface(ctx, span, "CommentService", "DeleteComment", err,
			observability.Fields{"comment_id": in.CommentID, "user_id": in.UserID})
	}

	span.AddAttributes(attribute.Int64("comment.cascade_size", result.DeletedCount))
	cache.InvalidatePost(ctx, result.Post.ID)
	observability.CommentMutations.WithLabelValues("delete").Inc()
	observability.CascadeDeletedComments.Observe(float64(result.DeletedCount))
	return &result, nil
}

// collectSubtree walks parent_comment_id breadth-first from rootID and
// returns rootID followed by every descendant.
func collectSubtree(ctx context.Context, comments repository.CommentRepository, rootID uint) ([]uint, error) {
	ids := []uint{rootID}
	seen := map[uint]bool{rootID: true}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		children, err := comments.ChildIDs(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(children))
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			next = append(next, id)
		}
		ids = append(ids, next...)
		frontier = next
	}
	return ids, nil
}

// ListTopLevel pages through a post's top-level comments, newest first.
func (s *CommentService) ListTopLevel(ctx context.Context, postID uint, page models.PageRequest) (*models.CommentPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "ListTopLevel",
		attribute.Int64("post.id", int64(postID)))
	defer span.End()

	fail := func(err error) (*models.CommentPage, error) {
		return nil, surface(ctx, span, "CommentService", "ListTopLevel", err,
			observability.Fields{"post_id": postID})
	}

	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return fail(err)
	}
	comments, err := s.commentRepo.ListTopLevel(ctx, postID, page.Limit(), page.Offset())
	if err != nil {
		return fail(err)
	}
	total, err := s.commentRepo.CountTopLevel(ctx, postID)
	if err != nil {
		return fail(err)
	}

	result := models.NewPage(comments, page, total)
	return &result, nil
}

// ListReplies returns the direct children of a comment, newest first.
func (s *CommentService) ListReplies(ctx context.Context, commentID uint) ([]*models.Comment, error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "ListReplies",
		attribute.Int64("comment.id", int64(commentID)))
	defer span.End()

	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, surface(ctx, span, "CommentService", "ListReplies", err,
			observability.Fields{"comment_id": commentID})
	}
	replies, err := s.commentRepo.ListReplies(ctx, commentID)
	if err != nil {
		return nil, surface(ctx, span, "CommentService", "ListReplies", err,
			observability.Fields{"comment_id": commentID})
	}
	if replies == nil {
		replies = []*models.Comment{}
	}
	return replies, nil
}
