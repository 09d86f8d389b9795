package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore writes each transcript as a hash at chat:<id> and indexes it in
// the sorted set user:chat:<user>, scored by creation time.
type RedisStore struct {
	client *backend.Client
	prefix string
}

type RedisOption func(*RedisStore)

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

func (s *RedisStore) key(id string) string {
	return s.prefix + "chat:" + id
}

func (s *RedisStore) indexKey(userID string) string {
	return s.prefix + "user:chat:" + userID
}

func (s *RedisStore) Save(ctx context.Context, t Transcript) error {
	messages, err := json.Marshal(t.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(t.ID), map[string]any{
		"id":        t.ID,
		"title":     t.Title,
		"userId":    t.UserID,
		"createdAt": t.CreatedAt,
		"path":      t.Path,
		"messages":  string(messages),
	})
	pipe.ZAdd(ctx, s.indexKey(t.UserID), backend.Z{
		Score:  float64(t.CreatedAt),
		Member: "chat:" + t.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Transcript, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Transcript{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return Transcript{}, ErrNotFound
	}
	return decodeHash(fields)
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]Transcript, error) {
	members, err := s.client.ZRevRange(ctx, s.indexKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*backend.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, s.prefix+m)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load chats: %w", err)
	}

	out := make([]Transcript, 0, len(cmds))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Index entry outlived its hash.
			continue
		}
		t, err := decodeHash(fields)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strings.TrimPrefix(members[i], "chat:"), err)
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeHash(fields map[string]string) (Transcript, error) {
	t := Transcript{
		ID:     fields["id"],
		Title:  fields["title"],
		UserID: fields["userId"],
		Path:   fields["path"],
	}
	if v := fields["createdAt"]; v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Transcript{}, fmt.Errorf("bad createdAt: %w", err)
		}
		t.CreatedAt = n
	}
	if v := fields["messages"]; v != "" {
		if err := json.Unmarshal([]byte(v), &t.Messages); err != nil {
			return Transcript{}, fmt.Errorf("bad messages: %w", err)
		}
	}
	return t, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
