package tokens

import (
	"context"
	"maps"

	lru "github.com/hashicorp/golang-lru/v2"
)

type tokensEntry struct {
	tokens DesignTokens
	ok     bool
}

type componentsEntry struct {
	classes ComponentClasses
	ok      bool
}

// CachedStore puts an LRU read cache in front of another Store. Writes go
// through and invalidate the user's entry, so a reader in this process never
// sees a value older than its own last write.
type CachedStore struct {
	next       Store
	tokens     *lru.Cache[string, tokensEntry]
	components *lru.Cache[string, componentsEntry]
}

func NewCachedStore(next Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 1024
	}
	t, err := lru.New[string, tokensEntry](size)
	if err != nil {
		return nil, err
	}
	c, err := lru.New[string, componentsEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{next: next, tokens: t, components: c}, nil
}

func (s *CachedStore) Get(ctx context.Context, userID string) (DesignTokens, bool, error) {
	if e, hit := s.tokens.Get(userID); hit {
		return e.tokens.Clone(), e.ok, nil
	}
	t, ok, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	s.tokens.Add(userID, tokensEntry{tokens: t.Clone(), ok: ok})
	return t, ok, nil
}

func (s *CachedStore) Set(ctx context.Context, userID string, tokens DesignTokens) error {
	err := s.next.Set(ctx, userID, tokens)
	s.tokens.Remove(userID)
	return err
}

func (s *CachedStore) GetComponents(ctx context.Context, userID string) (ComponentClasses, bool, error) {
	if e, hit := s.components.Get(userID); hit {
		return maps.Clone(e.classes), e.ok, nil
	}
	c, ok, err := s.next.GetComponents(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	s.components.Add(userID, componentsEntry{classes: maps.Clone(c), ok: ok})
	return c, ok, nil
}

func (s *CachedStore) SetComponents(ctx context.Context, userID string, classes ComponentClasses) error {
	err := s.next.SetComponents(ctx, userID, classes)
	s.components.Remove(userID)
	return err
}

// Len reports the number of cached token entries.
func (s *CachedStore) Len() int {
	return s.tokens.Len()
}
