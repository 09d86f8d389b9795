package tokens

import (
	"context"
	"maps"
	"sync"
)

type MemoryStore struct {
	mu         sync.RWMutex
	tokens     map[string]DesignTokens
	components map[string]ComponentClasses
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:     make(map[string]DesignTokens),
		components: make(map[string]ComponentClasses),
	}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (DesignTokens, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[userID]
	return t.Clone(), ok, nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, tokens DesignTokens) error {
	if userID == "" {
		return ErrNoUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = tokens.Clone()
	return nil
}

func (s *MemoryStore) GetComponents(_ context.Context, userID string) (ComponentClasses, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[userID]
	return maps.Clone(c), ok, nil
}

func (s *MemoryStore) SetComponents(_ context.Context, userID string, classes ComponentClasses) error {
	if userID == "" {
		return ErrNoUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.components[userID] = maps.Clone(classes)
	return nil
}
