package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"account-portal/internal/config"
	"account-portal/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/extra/redisprometheus/v9"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used by RedisStore.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// compareAndSwapScript returns -1 when the key is missing, 0 on mismatch and 1 on swap.
var compareAndSwapScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return -1
end
if current ~= ARGV[1] then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

type RedisStore struct {
	client RedisClient
	logger *slog.Logger
}

func NewRedisStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*RedisStore, error) {
	client := NewRedisClient(cfg, logger)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	collector := redisprometheus.NewCollector(metrics.Namespace, "store", client)
	if err := prometheus.Register(collector); err != nil {
		logger.Debug("failed to register redis store collector: already registered", "error", err)
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// NewRedisClient connects directly or through sentinel, depending on the config.
func NewRedisClient(cfg *config.Config, logger *slog.Logger) *redis.Client {
	if cfg.Redis.Sentinel != nil {
		logger.Info("connecting to redis via sentinel",
			"master", cfg.Redis.Sentinel.MasterName,
			"sentinels", cfg.Redis.Sentinel.SentinelAddresses)

		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.Redis.Sentinel.MasterName,
			SentinelAddrs:    cfg.Redis.Sentinel.SentinelAddresses,
			SentinelUsername: cfg.Redis.Sentinel.SentinelUsername,
			SentinelPassword: cfg.Redis.Sentinel.SentinelPassword,
			Username:         cfg.Redis.Username,
			Password:         cfg.Redis.Password,
			DB:               cfg.Redis.Index,
			MinIdleConns:     2,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Address,
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Index,
		MinIdleConns: 2,
	})
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (r *RedisStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GETDEL failed: %w", err)
	}
	return value, nil
}

func (r *RedisStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) error {
	result, err := compareAndSwapScript.Run(ctx, r.client, []string{key}, prev, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("redis compare-and-swap failed: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return ErrNotFound
	default:
		return ErrConflict
	}
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := r.client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("redis KEYS failed: %w", err)
	}
	return keys, nil
}

// Sweep is a no-op, redis expires keys itself.
func (r *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
