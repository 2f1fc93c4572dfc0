package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
)

// MemoryStore is an in-process Store backed by ristretto.
type MemoryStore struct {
	cache *ristretto.Cache
}

// NewMemoryStore creates a store bounded to maxCost bytes.
func NewMemoryStore(maxCost int64) (*MemoryStore, error) {
	if maxCost <= 0 {
		maxCost = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrKeyEmpty
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, ErrMiss
	}
	return data, nil
}

// Set stores value and waits until it is visible to Get. A zero ttl keeps
// the entry until it is evicted.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := checkSet(key, ttl); err != nil {
		return err
	}
	s.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.cache.Del(k)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}
