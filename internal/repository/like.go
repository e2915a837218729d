package repository

import (
	"context"

	"socialapp/internal/models"
	"socialapp/internal/observability"

	"gorm.io/gorm"
)

// LikeRepository defines persistence operations for likes. Every lookup is
// keyed by a models.LikeTarget so a like can never address both kinds.
type LikeRepository interface {
	Find(ctx context.Context, userID uint, target models.LikeTarget) (*models.Like, error)
	Create(ctx context.Context, like *models.Like) error
	Delete(ctx context.Context, id uint) error
	DeleteByPost(ctx context.Context, postID uint) (int64, error)
	DeleteByComments(ctx context.Context, commentIDs []uint) (int64, error)
	CountByTarget(ctx context.Context, target models.LikeTarget) (int64, error)
}

type likeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, log: observability.NewRepoLogger("likes")}
}

func targetColumn(target models.LikeTarget) (string, error) {
	if err := target.Validate(); err != nil {
		return "", err
	}
	if target.Kind == models.TargetPost {
		return "post_id", nil
	}
	return "comment_id", nil
}

// Find returns the user's like on target, or nil when there is none.
func (r *likeRepository) Find(ctx context.Context, userID uint, target models.LikeTarget) (*models.Like, error) {
	column, err := targetColumn(target)
	if err != nil {
		return nil, err
	}
	var likes []models.Like
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND "+column+" = ?", userID, target.ID).
		Limit(1).
		Find(&likes).Error
	if err != nil {
		return nil, err
	}
	if len(likes) == 0 {
		return nil, nil
	}
	return &likes[0], nil
}

func (r *likeRepository) Create(ctx context.Context, like *models.Like) error {
	if err := r.db.WithContext(ctx).Create(like).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		r.log.LogError(ctx, err, "create")
		return insertError(err, like.UserID)
	}
	r.log.LogCreate(ctx, observability.Fields{"like_id": like.ID, "target": like.Target().String()})
	return nil
}

func (r *likeRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Like{}, id)
	if result.Error != nil {
		r.log.LogError(ctx, result.Error, "delete")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Like", id)
	}
	r.log.LogDelete(ctx, observability.Fields{"like_id": id})
	return nil
}

func (r *likeRepository) DeleteByPost(ctx context.Context, postID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Like{})
	return result.RowsAffected, result.Error
}

func (r *likeRepository) DeleteByComments(ctx context.Context, commentIDs []uint) (int64, error) {
	if len(commentIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("comment_id IN ?", commentIDs).Delete(&models.Like{})
	return result.RowsAffected, result.Error
}

func (r *likeRepository) CountByTarget(ctx context.Context, target models.LikeTarget) (int64, error) {
	column, err := targetColumn(target)
	if err != nil {
		return 0, err
	}
	var total int64
	err = r.db.WithContext(ctx).Model(&models.Like{}).Where(column+" = ?", target.ID).Count(&total).Error
	return total, err
}
