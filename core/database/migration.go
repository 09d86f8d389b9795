package database

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
)

// Migration is one schema step. The applied version is tracked in sqlite's
// user_version pragma, so versions must be unique and positive.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

type Migrator struct {
	pool       *Pool
	migrations []Migration
}

func NewMigrator(pool *Pool, migrations []Migration) *Migrator {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int {
		return cmp.Compare(a.Version, b.Version)
	})
	return &Migrator{pool: pool, migrations: sorted}
}

// Migrate applies every pending migration in version order, each in its own
// transaction. A failed step leaves the earlier ones applied.
func (m *Migrator) Migrate(ctx context.Context) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err
	}
	for i, mig := range pending {
		if i > 0 && mig.Version == pending[i-1].Version {
			return fmt.Errorf("duplicate migration version %d", mig.Version)
		}
		err := m.pool.Transaction(ctx, func(tx *sql.Tx) error {
			if err := mig.Up(tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", mig.Version))
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}
	return nil
}

func (m *Migrator) CurrentVersion() (int, error) {
	return m.pool.Version()
}

// PendingMigrations returns the migrations newer than the database.
func (m *Migrator) PendingMigrations() ([]Migration, error) {
	current, err := m.pool.Version()
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	idx, _ := slices.BinarySearchFunc(m.migrations, current+1, func(mig Migration, v int) int {
		return cmp.Compare(mig.Version, v)
	})
	return slices.Clone(m.migrations[idx:]), nil
}
