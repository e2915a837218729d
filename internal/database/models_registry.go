package database

import "socialapp/internal/models"

// PersistentModels lists the tables AutoMigrate manages, parents before
// children: users own posts, posts own comments, likes point at either.
func PersistentModels() []any {
	return []any{&models.User{}, &models.Post{}, &models.Comment{}, &models.Like{}}
}
