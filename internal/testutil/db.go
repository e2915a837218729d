// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"

	"socialapp/internal/database"
	"socialapp/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB opens a private in-memory SQLite database with the full schema.
// The pool is pinned to one connection, so code running inside a transaction
// must not touch the database through any other handle.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user named name and returns it.
func CreateUser(t testing.TB, db *gorm.DB, name string) *models.User {
	t.Helper()

	user := &models.User{
		Name:  name,
		Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Image: "https://img.example.com/" + name + ".png",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a post owned by ownerID with zeroed counters.
func CreatePost(t testing.TB, db *gorm.DB, ownerID uint, content string) *models.Post {
	t.Helper()

	post := &models.Post{UserID: ownerID, Content: content}
	require.NoError(t, db.Create(post).Error)
	return post
}
