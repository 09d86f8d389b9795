package database

import (
	"context"
	"database/sql"
)

// Migrations is the canvas schema. Values are JSON documents keyed by user
// or transcript id.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "design tokens and component classes",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS design_tokens (
				user_id TEXT PRIMARY KEY,
				tokens TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS design_components (
				user_id TEXT PRIMARY KEY,
				classes TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
		),
	},
	{
		Version:     2,
		Description: "chat transcripts",
		Up: execAll(
			`CREATE TABLE IF NOT EXISTS chats (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				title TEXT NOT NULL,
				path TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				messages TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats(user_id, created_at DESC)`,
		),
	},
}

func execAll(statements ...string) func(tx *sql.Tx) error {
	return func(tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// OpenMigrated opens the database at path and applies Migrations.
func OpenMigrated(ctx context.Context, path string) (*Pool, error) {
	pool, err := Open(path, DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(pool, Migrations).Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
