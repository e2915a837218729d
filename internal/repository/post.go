// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"

	"socialapp/internal/models"
	"socialapp/internal/observability"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetForUpdate(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)
	ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Post, error)
	CountByOwner(ctx context.Context, ownerID uint) (int64, error)
	Delete(ctx context.Context, id uint) error
	AdjustLikesCount(ctx context.Context, id uint, delta int) error
	AdjustCommentsCount(ctx context.Context, id uint, delta int) error
	SetCounters(ctx context.Context, id uint, likes, comments int) error
	ListIDs(ctx context.Context, afterID uint, limit int) ([]uint, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db    *gorm.DB
	reads *gorm.DB
	log   *observability.RepoLogger
}

// NewPostRepository creates a new post repository. List queries go to the
// read replica when one is configured.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, reads: readDB(db), log: observability.NewRepoLogger("posts")}
}

func newTxPostRepository(tx *gorm.DB) PostRepository {
	return &postRepository{db: tx, reads: tx, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return insertError(err, post.UserID)
	}
	r.log.LogCreate(ctx, observability.Fields{"post_id": post.ID, "user_id": post.UserID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := withAuthor(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

// GetForUpdate loads the post and, on PostgreSQL, locks its row until the
// surrounding transaction ends.
func (r *postRepository) GetForUpdate(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := lockForUpdate(r.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := withAuthor(r.reads.WithContext(ctx)).
		Order(newestFirst).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.reads.WithContext(ctx).Model(&models.Post{}).Count(&total).Error
	return total, err
}

func (r *postRepository) ListByOwner(ctx context.Context, ownerID uint, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := withAuthor(r.reads.WithContext(ctx)).
		Where("user_id = ?", ownerID).
		Order(newestFirst).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var total int64
	err := r.reads.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", ownerID).Count(&total).Error
	return total, err
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogDelete(ctx, observability.Fields{"post_id": id})
	return nil
}

func (r *postRepository) AdjustLikesCount(ctx context.Context, id uint, delta int) error {
	return r.adjust(ctx, id, "likes_count", delta)
}

func (r *postRepository) AdjustCommentsCount(ctx context.Context, id uint, delta int) error {
	return r.adjust(ctx, id, "comments_count", delta)
}

// adjust is a single UPDATE so the read-modify-write is atomic per row.
func (r *postRepository) adjust(ctx context.Context, id uint, column string, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn(column, clampedAdd(column, delta))
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "adjust_"+column)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) SetCounters(ctx context.Context, id uint, likes, comments int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{"likes_count": likes, "comments_count": comments})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogUpdate(ctx, observability.Fields{"post_id": id, "likes_count": likes, "comments_count": comments})
	return nil
}

// ListIDs pages through post ids in ascending order, starting after afterID.
func (r *postRepository) ListIDs(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
