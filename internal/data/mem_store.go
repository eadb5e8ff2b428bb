package data

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemStore keeps entries in process memory. go-cache handles expiry and the janitor;
// mu serialises the read-modify-write operations go-cache does not offer atomically.
type MemStore struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

func NewMemStore() *MemStore {
	return &MemStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func cacheTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value.([]byte)), nil
}

func (m *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Set(key, bytes.Clone(value), cacheTTL(ttl))
	return nil
}

func (m *MemStore) GetDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.cache.Get(key)
	m.cache.Delete(key)
	if !ok {
		return nil, ErrNotFound
	}
	return value.([]byte), nil
}

func (m *MemStore) CompareAndSwap(_ context.Context, key string, prev, next []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.cache.Get(key)
	if !ok {
		return ErrNotFound
	}
	if !bytes.Equal(current.([]byte), prev) {
		return ErrConflict
	}

	m.cache.Set(key, bytes.Clone(next), cacheTTL(ttl))
	return nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Delete(key)
	return nil
}

func (m *MemStore) Keys(_ context.Context, prefix string) ([]string, error) {
	items := m.cache.Items()

	keys := make([]string, 0, len(items))
	for key := range items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *MemStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := m.cache.ItemCount()
	m.cache.DeleteExpired()
	return before - m.cache.ItemCount(), nil
}

func (m *MemStore) Close() error {
	m.cache.Flush()
	return nil
}
