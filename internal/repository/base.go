package repository

import (
	"errors"
	"strings"

	"socialapp/internal/database"
	"socialapp/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicate is returned when an insert hits a unique index.
var ErrDuplicate = errors.New("duplicate record")

const newestFirst = "created_at DESC, id DESC"

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// lockForUpdate adds FOR UPDATE on PostgreSQL. SQLite already serializes writers.
func lockForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector != nil && db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isMissingUser reports a foreign-key failure on a user_id column. SQLite
// does not name the constraint, so any FK failure counts there.
func isMissingUser(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" && strings.Contains(pgErr.ConstraintName, "user_id")
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// insertError maps an insert failure by userID's row onto a business error
// where one applies.
func insertError(err error, userID uint) error {
	if isMissingUser(err) {
		return models.NewNotFoundError("User", userID)
	}
	return err
}

func notFoundOr(err error, resource string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return err
}

// clampedAdd never lets column drop below zero.
func clampedAdd(column string, delta int) clause.Expr {
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}

func withAuthor(db *gorm.DB) *gorm.DB {
	return db.Preload("Author", func(tx *gorm.DB) *gorm.DB {
		return tx.Select("id", "name", "image")
	})
}
