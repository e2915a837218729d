package repository

import (
	"context"

	"socialapp/internal/models"
	"socialapp/internal/observability"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations. Comments form
// an arena keyed by id; every traversal goes through parent_comment_id.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Comment, error)
	ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error)
	CountTopLevel(ctx context.Context, postID uint) (int64, error)
	ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error)
	ListRecentTopLevel(ctx context.Context, postID uint, n int) ([]models.CommentPreview, error)
	ChildIDs(ctx context.Context, parentIDs []uint) ([]uint, error)
	IDsByPost(ctx context.Context, postID uint) ([]uint, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	DeleteByIDs(ctx context.Context, ids []uint) (int64, error)
	AdjustLikesCount(ctx context.Context, id uint, delta int) error
	SetLikesCount(ctx context.Context, id uint, likes int) error
	LockByIDs(ctx context.Context, ids []uint) error
}

type commentRepository struct {
	db    *gorm.DB
	reads *gorm.DB
	log   *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, reads: readDB(db), log: observability.NewRepoLogger("comments")}
}

func newTxCommentRepository(tx *gorm.DB) CommentRepository {
	return &commentRepository{db: tx, reads: tx, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return insertError(err, comment.UserID)
	}
	r.log.LogCreate(ctx, observability.Fields{"comment_id": comment.ID, "post_id": comment.PostID})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := withAuthor(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) GetForUpdate(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := lockForUpdate(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListTopLevel(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := withAuthor(r.reads.WithContext(ctx)).
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Order(newestFirst).
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) CountTopLevel(ctx context.Context, postID uint) (int64, error) {
	var total int64
	err := r.reads.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Count(&total).Error
	return total, err
}

func (r *commentRepository) ListReplies(ctx context.Context, parentID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := withAuthor(r.reads.WithContext(ctx)).
		Where("parent_comment_id = ?", parentID).
		Order(newestFirst).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) ListRecentTopLevel(ctx context.Context, postID uint, n int) ([]models.CommentPreview, error) {
	previews := []models.CommentPreview{}
	err := r.reads.WithContext(ctx).
		Model(&models.Comment{}).
		Select("content", "likes_count").
		Where("post_id = ? AND parent_comment_id IS NULL", postID).
		Order(newestFirst).
		Limit(n).
		Find(&previews).Error
	return previews, err
}

// ChildIDs returns the ids of the direct children of any of parentIDs.
func (r *commentRepository) ChildIDs(ctx context.Context, parentIDs []uint) ([]uint, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("parent_comment_id IN ?", parentIDs).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *commentRepository) IDsByPost(ctx context.Context, postID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ?", postID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&total).Error
	return total, err
}

// DeleteByIDs removes every listed comment in one statement, so a
// self-referencing foreign key is only checked once the whole set is gone.
func (r *commentRepository) DeleteByIDs(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Comment{})
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete")
		return 0, result.Error
	}
	r.log.LogDelete(ctx, observability.Fields{"comment_ids": ids, "rows": result.RowsAffected})
	return result.RowsAffected, nil
}

func (r *commentRepository) AdjustLikesCount(ctx context.Context, id uint, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumn("likes_count", clampedAdd("likes_count", delta))
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "adjust_likes_count")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func (r *commentRepository) SetLikesCount(ctx context.Context, id uint, likes int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ?", id).
		UpdateColumn("likes_count", likes)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	r.log.LogUpdate(ctx, observability.Fields{"comment_id": id, "likes_count": likes})
	return nil
}

// LockByIDs takes row locks on the listed comments (PostgreSQL only) so a
// concurrent like toggle cannot insert rows that reference them.
func (r *commentRepository) LockByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []models.Comment
	return lockForUpdate(r.db.WithContext(ctx)).
		Select("id").
		Where("id IN ?", ids).
		Find(&locked).Error
}
