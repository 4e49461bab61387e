package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when no account-specific key is configured.
const DefaultRedisKey = "nexus-presence:session:default"

// RedisStore keeps State as one JSON document under a single Redis key. SET
// replaces the value atomically, so readers never observe a partial write.
type RedisStore struct {
	client *redis.Client
	key    string

	mu    sync.Mutex
	state State
}

// OpenRedis parses a redis:// URL and loads the current document. Only
// connection setup errors are returned; a missing key or undecodable value
// starts the store empty.
func OpenRedis(ctx context.Context, url, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedis(ctx, redis.NewClient(opts), key), nil
}

// NewRedis wraps an existing client.
func NewRedis(ctx context.Context, client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	s := &RedisStore{client: client, key: key}
	data, err := client.Get(ctx, key).Bytes()
	if err == nil {
		s.state = decode(data)
	}
	return s
}

// Get returns a copy of the current state.
func (s *RedisStore) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

// Update merges fn's changes and writes the full document.
func (s *RedisStore) Update(ctx context.Context, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.state)
	fn(&next)
	s.state = next

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("write state key %s: %w", s.key, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
