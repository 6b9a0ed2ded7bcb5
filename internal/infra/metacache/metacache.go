// Package metacache implements the metadata cache backing the enrichment
// cache modes: a Redis-backed store for deployments and an in-memory
// fallback for single-process runs and tests.
package metacache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/airgrid-tv/airgrid/internal/domain"
)

// ─── Redis Cache ────────────────────────────────────────────────────────────

// RedisConfig configures the Redis-backed cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL bounds entry lifetime; zero means no expiry.
	TTL time.Duration

	// Prefix namespaces the cache keys.
	Prefix string
}

// DefaultRedisConfig returns production defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		TTL:    7 * 24 * time.Hour,
		Prefix: "airgrid:meta:",
	}
}

// Redis is a Redis-backed metadata cache. Entries are JSON values.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis creates a Redis-backed cache and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "airgrid:meta:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client, cfg: cfg}, nil
}

// Close releases the client.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(k string) string { return r.cfg.Prefix + k }

// Get loads a cached entry. A missing key returns ErrCacheMiss.
func (r *Redis) Get(ctx context.Context, key string) (*domain.ContentMeta, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	var meta domain.ContentMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &meta, nil
}

// Put stores an entry with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, meta *domain.ContentMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// ─── In-Memory Cache ────────────────────────────────────────────────────────

// Memory is a process-local metadata cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*domain.ContentMeta
}

// NewMemory creates an in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*domain.ContentMeta)}
}

// Get loads a cached entry. A missing key returns ErrCacheMiss.
func (m *Memory) Get(_ context.Context, key string) (*domain.ContentMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.entries[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return meta, nil
}

// Put stores an entry.
func (m *Memory) Put(_ context.Context, key string, meta *domain.ContentMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = meta
	return nil
}

// Delete removes an entry.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
