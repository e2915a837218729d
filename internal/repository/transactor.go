package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories groups the stores bound to one transaction.
type Repositories struct {
	Posts    PostRepository
	Comments CommentRepository
	Likes    LikeRepository
}

// Transactor runs a unit of work atomically. fn must only use the
// repositories it is handed; returning an error rolls everything back.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor returns a Transactor backed by db.
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, Repositories{
			Posts:    newTxPostRepository(tx),
			Comments: newTxCommentRepository(tx),
			Likes:    NewLikeRepository(tx),
		})
	})
}
