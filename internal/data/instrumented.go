package data

import (
	"context"
	"errors"
	"time"

	"account-portal/internal/metrics"
)

type instrumentedStore struct {
	name  string
	inner Store
}

// Instrument records operation latency and failures of s under the given store name.
func Instrument(name string, s Store) Store {
	if name == "" {
		name = metrics.StoreTypeMemory
	}
	return &instrumentedStore{name: name, inner: s}
}

func (s *instrumentedStore) observe(operation string, start time.Time, err error) {
	metrics.StoreOperationDuration.WithLabelValues(s.name, operation).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.StoreOperationErrors.WithLabelValues(s.name, operation).Inc()
	}
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.inner.Get(ctx, key)
	s.observe(metrics.StoreOperationGet, start, err)
	return value, err
}

func (s *instrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	s.observe(metrics.StoreOperationSet, start, err)
	return err
}

func (s *instrumentedStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.inner.GetDel(ctx, key)
	s.observe(metrics.StoreOperationGetDel, start, err)
	return value, err
}

func (s *instrumentedStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.CompareAndSwap(ctx, key, prev, next, ttl)
	s.observe(metrics.StoreOperationCompareAndSwap, start, err)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe(metrics.StoreOperationDelete, start, err)
	return err
}

func (s *instrumentedStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.Keys(ctx, prefix)
	s.observe(metrics.StoreOperationKeys, start, err)
	return keys, err
}

func (s *instrumentedStore) Sweep(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.inner.Sweep(ctx)
	s.observe(metrics.StoreOperationSweep, start, err)
	return n, err
}

func (s *instrumentedStore) Close() error {
	return s.inner.Close()
}
