package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore keeps each mapping as a JSON string under
// <prefix>design:tokens:<user> and <prefix>design:components:<user>.
type RedisStore struct {
	client *backend.Client
	prefix string
}

type RedisOption func(*RedisStore)

// WithPrefix namespaces every key.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) tokensKey(userID string) string {
	return s.prefix + "design:tokens:" + userID
}

func (s *RedisStore) componentsKey(userID string) string {
	return s.prefix + "design:components:" + userID
}

func (s *RedisStore) Get(ctx context.Context, userID string) (DesignTokens, bool, error) {
	var t DesignTokens
	ok, err := s.getJSON(ctx, s.tokensKey(userID), &t)
	return t, ok, err
}

func (s *RedisStore) Set(ctx context.Context, userID string, tokens DesignTokens) error {
	if userID == "" {
		return ErrNoUser
	}
	return s.setJSON(ctx, s.tokensKey(userID), tokens)
}

func (s *RedisStore) GetComponents(ctx context.Context, userID string) (ComponentClasses, bool, error) {
	var c ComponentClasses
	ok, err := s.getJSON(ctx, s.componentsKey(userID), &c)
	return c, ok, err
}

func (s *RedisStore) SetComponents(ctx context.Context, userID string, classes ComponentClasses) error {
	if userID == "" {
		return ErrNoUser
	}
	return s.setJSON(ctx, s.componentsKey(userID), classes)
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from redis: %w", err)
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
