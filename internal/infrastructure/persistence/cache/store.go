// Package cache implements the reference-data cache: byte stores backed by
// ristretto or Redis and a decorator that caches WebUntis reference calls.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned when the requested key is not in the store.
	ErrMiss = errors.New("cache: key not found")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrInvalidTTL is returned for negative TTLs.
	ErrInvalidTTL = errors.New("cache: invalid TTL")
)

// Store is a byte-oriented key/value store with expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

func checkSet(key string, ttl time.Duration) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if ttl < 0 {
		return ErrInvalidTTL
	}
	return nil
}
