// Package redis provides a Redis-backed store implementation, the default
// persistence backend in production.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"catalogsync/internal/store"
)

// Store persists values as plain Redis strings with no TTL.
type Store struct {
	cli redis.Cmdable
}

// New wraps an existing Redis client.
func New(cli redis.Cmdable) *Store {
	return &Store{cli: cli}
}

// Connect parses url, dials Redis, and verifies the connection with a ping.
func Connect(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(cli), nil
}

// Get returns the value stored under key or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	val, err := s.cli.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return val, nil
}

// Set writes value under key with no expiry.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := s.cli.Set(ctx, key, []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}
