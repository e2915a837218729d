package repository

import (
	"context"

	"socialapp/internal/cache"
	"socialapp/internal/models"

	"gorm.io/gorm"
)

// UserRepository is the read-only view of the identity service's users that
// the feed needs, plus Create for seeding.
type UserRepository interface {
	Exists(ctx context.Context, id uint) (bool, error)
	GetAuthor(ctx context.Context, id uint) (*models.Author, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Exists(ctx context.Context, id uint) (bool, error) {
	_, err := r.GetAuthor(ctx, id)
	if err == nil {
		return true, nil
	}
	if models.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// GetAuthor returns the public projection of a user, read through the cache.
func (r *userRepository) GetAuthor(ctx context.Context, id uint) (*models.Author, error) {
	var author models.Author
	err := cache.Aside(ctx, cache.UserKey(id), &author, cache.UserTTL, func() error {
		return readDB(r.db).WithContext(ctx).
			Select("id", "name", "image").
			First(&author, id).Error
	})
	if err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &author, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}
