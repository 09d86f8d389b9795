package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adalundhe/canvas/core/database"
)

// SQLiteStore keeps transcripts in the chats table. The pool must be
// migrated.
type SQLiteStore struct {
	pool *database.Pool
}

func NewSQLiteStore(pool *database.Pool) *SQLiteStore {
	return &SQLiteStore{pool: pool}
}

func (s *SQLiteStore) Save(ctx context.Context, t Transcript) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO chats (id, user_id, title, path, created_at, messages)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			path = excluded.path,
			created_at = excluded.created_at,
			messages = excluded.messages`,
		t.ID, t.UserID, t.Title, t.Path, t.CreatedAt, string(messages))
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Transcript, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, user_id, title, path, created_at, messages FROM chats WHERE id = ?`, id)
	t, err := scanTranscript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Transcript{}, ErrNotFound
	}
	return t, err
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Transcript, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, user_id, title, path, created_at, messages FROM chats
		WHERE user_id = ? ORDER BY created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var out []Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(row scanner) (Transcript, error) {
	var (
		t        Transcript
		messages string
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Path, &t.CreatedAt, &messages); err != nil {
		return Transcript{}, err
	}
	if err := json.Unmarshal([]byte(messages), &t.Messages); err != nil {
		return Transcript{}, fmt.Errorf("decode messages: %w", err)
	}
	return t, nil
}
