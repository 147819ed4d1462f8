package pii

import (
	"context"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// TokenStore holds token-to-value mappings for later restoration.
// Implementations must honor the per-entry TTL.
type TokenStore interface {
	// Put records value under token for ttlSeconds.
	Put(ctx context.Context, token, value string, ttlSeconds int) error
	// Get resolves token; ok is false for unknown or expired tokens.
	Get(ctx context.Context, token string) (value string, ok bool, err error)
}

// MemoryStore is an in-process TokenStore. It is the fallback when no
// Redis endpoint is configured and the default for tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// now is replaceable for expiry tests.
	now func() time.Time
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (s *MemoryStore) Put(_ context.Context, token, value string, ttlSeconds int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{
		value:   value,
		expires: s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return "", false, nil
	}
	if s.now().After(e.expires) {
		delete(s.entries, token)
		return "", false, nil
	}
	return e.value, true, nil
}

// RedisStore keeps token mappings in Redis so restoration survives
// process restarts and works across replicas.
type RedisStore struct {
	client *goredis.Client
	// Prefix namespaces keys; "glean:pii:" by default.
	prefix string
}

// DefaultKeyPrefix namespaces token keys in Redis.
const DefaultKeyPrefix = "glean:pii:"

// NewRedisStore connects a store to the Redis at url.
func NewRedisStore(url, prefix string) (*RedisStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("pii store: invalid redis URL: %w", err)
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: goredis.NewClient(opts), prefix: prefix}, nil
}

func (s *RedisStore) Put(ctx context.Context, token, value string, ttlSeconds int) error {
	ttl := time.Duration(ttlSeconds) * time.Second
	if err := s.client.Set(ctx, s.prefix+token, value, ttl).Err(); err != nil {
		return fmt.Errorf("pii store: set: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+token).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("pii store: get: %w", err)
	}
	return value, true, nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*RedisStore)(nil)
)
