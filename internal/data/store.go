package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account-portal/internal/config"
)

//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks

var (
	ErrNotFound = errors.New("key not found")
	ErrConflict = errors.New("value changed concurrently")
)

// Store is the key-value layer behind state tokens and refresh credentials.
// A ttl of zero means the key never expires. Expired keys behave as absent.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetDel atomically reads and removes key. At most one caller observes the value.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// CompareAndSwap replaces the value of key with next only if it still equals prev.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Sweep removes expired keys for backends without native expiry.
	Sweep(ctx context.Context) (int, error)
	Close() error
}

// NewStore returns the Store selected by storage.type, wrapped with metrics.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Storage.Type {
	case config.StorageTypeRedis:
		store, err = NewRedisStore(ctx, cfg, logger)
	case config.StorageTypeBolt:
		store, err = NewBoltStore(cfg.Storage.Path)
	case config.StorageTypePostgres:
		store, err = NewPostgresStore(ctx, cfg.Storage.DSN)
	case config.StorageTypeMemory, "":
		store = NewMemStore()
	default:
		return nil, fmt.Errorf("%w: unsupported storage type: %s", config.ErrInvalidConfig, cfg.Storage.Type)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("key-value store ready", "type", cfg.Storage.Type)

	return Instrument(cfg.Storage.Type, store), nil
}

func isExpired(expiresAt time.Time, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}

func expiryFor(ttl time.Duration, now time.Time) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
