package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"socialapp/internal/middleware"

	"gorm.io/gorm"
)

// AppliedMigration is a row of the schema_migrations history table.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName returns the history table name.
func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

const createHistorySQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Migrator applies and reverts the embedded SQL migrations and keeps the
// schema_migrations history in step.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, migrations: GetMigrations()}
}

// History returns the applied migrations in version order. A missing
// history table means nothing has been applied yet.
func (m *Migrator) History(ctx context.Context) ([]AppliedMigration, error) {
	var rows []AppliedMigration
	err := m.db.WithContext(ctx).Order("version ASC").Find(&rows).Error
	if err != nil {
		if isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration history: %w", err)
	}
	return rows, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Pending returns the migrations that are not in history.
func (m *Migrator) Pending(history []AppliedMigration) []Migration {
	done := make(map[int]bool, len(history))
	for _, h := range history {
		done[h.Version] = true
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending
}

// Up applies every pending migration, each in its own transaction together
// with its history row.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.db.WithContext(ctx).Exec(createHistorySQL).Error; err != nil {
		return fmt.Errorf("create migration history table: %w", err)
	}

	history, err := m.History(ctx)
	if err != nil {
		return err
	}
	if err := verifyHistory(history, m.migrations); err != nil {
		return err
	}

	for _, mig := range m.Pending(history) {
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.Up).Error; err != nil {
				return fmt.Errorf("apply %s: %w", mig, err)
			}
			return tx.Create(&AppliedMigration{
				Version:  mig.Version,
				Name:     mig.Name,
				Checksum: mig.Checksum,
			}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Down reverts one applied migration and removes its history row.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig := GetMigrationByVersion(version)
	if mig == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	history, err := m.History(ctx)
	if err != nil {
		return err
	}
	applied := false
	for _, h := range history {
		applied = applied || h.Version == version
	}
	if !applied {
		return fmt.Errorf("migration %s has not been applied", mig)
	}

	middleware.Logger.Info("Rolling back migration", slog.String("migration", mig.String()))
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.Down).Error; err != nil {
			return fmt.Errorf("revert %s: %w", mig, err)
		}
		return tx.Where("version = ?", version).Delete(&AppliedMigration{}).Error
	})
}

var errHistoryMismatch = errors.New("migration history does not match embedded migrations")

// verifyHistory rejects a database whose history names versions this build
// does not know or whose applied scripts have since been edited.
func verifyHistory(history []AppliedMigration, known []Migration) error {
	byVersion := make(map[int]Migration, len(known))
	for _, mig := range known {
		byVersion[mig.Version] = mig
	}

	var problems []string
	for _, h := range history {
		mig, ok := byVersion[h.Version]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%06d is unknown", h.Version))
		case h.Checksum != "" && h.Checksum != mig.Checksum:
			problems = append(problems, fmt.Sprintf("%s was edited after it was applied", mig))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", errHistoryMismatch, strings.Join(problems, "; "))
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	return NewMigrator(db).Up(ctx)
}

// RollbackMigration reverts the migration with the given version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db).Down(ctx, version)
}
