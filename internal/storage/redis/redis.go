// Package redis provides Redis-backed hysteresis state and allowlist stores.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/carsearch/internal/store"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "carsearch:"

// Config holds connection settings. Key prefix and state TTL belong to the
// stores built on the client.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func prefixOrDefault(p string) string {
	if p == "" {
		return DefaultPrefix
	}
	return p
}

// StateStore keeps each path's hysteresis state as a JSON string.
type StateStore struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewStateStore builds a StateStore.
func NewStateStore(client goredis.Cmdable, prefix string, ttl time.Duration) *StateStore {
	return &StateStore{client: client, prefix: prefixOrDefault(prefix) + "state:", ttl: ttl}
}

// GetState returns store.ErrNotFound for a missing or expired key.
func (s *StateStore) GetState(ctx context.Context, key string) (store.HysteresisState, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return store.HysteresisState{}, store.ErrNotFound
	}
	if err != nil {
		return store.HysteresisState{}, fmt.Errorf("redis get: %w", err)
	}
	var st store.HysteresisState
	if err := json.Unmarshal(raw, &st); err != nil {
		return store.HysteresisState{}, fmt.Errorf("decode state %s: %w", key, err)
	}
	return st, nil
}

// SetState writes the state and refreshes the TTL.
func (s *StateStore) SetState(ctx context.Context, key string, st store.HysteresisState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// AllowlistSource keeps indexable paths in one Redis set.
type AllowlistSource struct {
	client goredis.Cmdable
	key    string
}

// NewAllowlistSource builds an AllowlistSource.
func NewAllowlistSource(client goredis.Cmdable, prefix string) *AllowlistSource {
	return &AllowlistSource{client: client, key: prefixOrDefault(prefix) + "allowlist"}
}

// ListPaths returns the set members sorted.
func (s *AllowlistSource) ListPaths(ctx context.Context) ([]string, error) {
	paths, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// AddPath adds path to the set.
func (s *AllowlistSource) AddPath(ctx context.Context, path string) error {
	if err := s.client.SAdd(ctx, s.key, path).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// RemovePath removes path or returns store.ErrNotFound.
func (s *AllowlistSource) RemovePath(ctx context.Context, path string) error {
	n, err := s.client.SRem(ctx, s.key, path).Result()
	if err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
