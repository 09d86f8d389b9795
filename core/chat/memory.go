package chat

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	chats map[string]Transcript
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chats: make(map[string]Transcript)}
}

func (s *MemoryStore) Save(_ context.Context, t Transcript) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.Messages = slices.Clone(t.Messages)
	s.chats[t.ID] = t
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.chats[id]
	if !ok {
		return Transcript{}, ErrNotFound
	}
	t.Messages = slices.Clone(t.Messages)
	return t, nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Transcript
	for _, t := range s.chats {
		if t.UserID == userID {
			t.Messages = slices.Clone(t.Messages)
			out = append(out, t)
		}
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func newestFirst(a, b Transcript) int {
	if c := cmp.Compare(b.CreatedAt, a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
