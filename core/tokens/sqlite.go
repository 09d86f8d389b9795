package tokens

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adalundhe/canvas/core/database"
)

// SQLiteStore keeps one JSON row per user in design_tokens and
// design_components. The pool must be migrated.
type SQLiteStore struct {
	pool *database.Pool
}

func NewSQLiteStore(pool *database.Pool) *SQLiteStore {
	return &SQLiteStore{pool: pool}
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (DesignTokens, bool, error) {
	var t DesignTokens
	ok, err := s.get(ctx, `SELECT tokens FROM design_tokens WHERE user_id = ?`, userID, &t)
	return t, ok, err
}

func (s *SQLiteStore) Set(ctx context.Context, userID string, tokens DesignTokens) error {
	return s.put(ctx, `INSERT INTO design_tokens (user_id, tokens, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET tokens = excluded.tokens, updated_at = excluded.updated_at`,
		userID, tokens)
}

func (s *SQLiteStore) GetComponents(ctx context.Context, userID string) (ComponentClasses, bool, error) {
	var c ComponentClasses
	ok, err := s.get(ctx, `SELECT classes FROM design_components WHERE user_id = ?`, userID, &c)
	return c, ok, err
}

func (s *SQLiteStore) SetComponents(ctx context.Context, userID string, classes ComponentClasses) error {
	return s.put(ctx, `INSERT INTO design_components (user_id, classes, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET classes = excluded.classes, updated_at = excluded.updated_at`,
		userID, classes)
}

func (s *SQLiteStore) get(ctx context.Context, query, userID string, dst any) (bool, error) {
	var raw string
	err := s.pool.QueryRow(ctx, query, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) put(ctx context.Context, query, userID string, v any) error {
	if userID == "" {
		return ErrNoUser
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, userID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
