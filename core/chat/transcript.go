// Package chat persists chat transcripts per user.
package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/canvas/core/providers"
)

const titleRunes = 100

var ErrNotFound = errors.New("chat: transcript not found")

// Transcript is one saved conversation. CreatedAt is Unix milliseconds.
type Transcript struct {
	ID        string              `json:"id"`
	Title     string              `json:"title"`
	UserID    string              `json:"userId"`
	CreatedAt int64               `json:"createdAt"`
	Path      string              `json:"path"`
	Messages  []providers.Message `json:"messages"`
}

// NewTranscript records messages followed by the assistant reply. An empty
// id gets a fresh one.
func NewTranscript(id, userID string, messages []providers.Message, reply string, now time.Time) Transcript {
	if id == "" {
		id = uuid.NewString()
	}
	all := make([]providers.Message, 0, len(messages)+1)
	all = append(all, messages...)
	all = append(all, providers.Message{Role: providers.RoleAssistant, Content: reply})

	return Transcript{
		ID:        id,
		Title:     Title(messages),
		UserID:    userID,
		CreatedAt: now.UnixMilli(),
		Path:      "/chat/" + id,
		Messages:  all,
	}
}

// Title is the first message's content cut to 100 runes.
func Title(messages []providers.Message) string {
	if len(messages) == 0 {
		return ""
	}
	r := []rune(messages[0].Content)
	if len(r) > titleRunes {
		r = r[:titleRunes]
	}
	return string(r)
}

// Store persists transcripts. List returns a user's transcripts newest
// first.
type Store interface {
	Save(ctx context.Context, t Transcript) error
	Get(ctx context.Context, id string) (Transcript, error)
	List(ctx context.Context, userID string) ([]Transcript, error)
}
