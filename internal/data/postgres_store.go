package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS portal_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS portal_kv_expires_at_idx ON portal_kv (expires_at) WHERE expires_at IS NOT NULL;
`

const (
	postgresLiveFilter = `(expires_at IS NULL OR expires_at > now())`

	queryGet    = `SELECT value FROM portal_kv WHERE key = $1 AND ` + postgresLiveFilter
	queryUpsert = `INSERT INTO portal_kv (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	queryGetDel = `DELETE FROM portal_kv WHERE key = $1 RETURNING value, expires_at`
	querySwap   = `UPDATE portal_kv SET value = $3, expires_at = $4
		WHERE key = $1 AND value = $2 AND ` + postgresLiveFilter
	queryExists = `SELECT EXISTS (SELECT 1 FROM portal_kv WHERE key = $1 AND ` + postgresLiveFilter + `)`
	queryDelete = `DELETE FROM portal_kv WHERE key = $1`
	queryKeys   = `SELECT key FROM portal_kv WHERE starts_with(key, $1) AND ` + postgresLiveFilter
	querySweep  = `DELETE FROM portal_kv WHERE expires_at IS NOT NULL AND expires_at <= now()`
)

// PostgresStore keeps entries in a single table. Expired rows are filtered on read and
// removed by Sweep.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func pgExpiry(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	expiresAt := time.Now().Add(ttl)
	return &expiresAt
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.pool.QueryRow(ctx, queryGet, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get failed: %w", err)
	}
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := p.pool.Exec(ctx, queryUpsert, key, value, pgExpiry(ttl)); err != nil {
		return fmt.Errorf("postgres set failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetDel(ctx context.Context, key string) ([]byte, error) {
	var (
		value     []byte
		expiresAt *time.Time
	)
	err := p.pool.QueryRow(ctx, queryGetDel, key).Scan(&value, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get-del failed: %w", err)
	}
	if expiresAt != nil && isExpired(*expiresAt, time.Now()) {
		return nil, ErrNotFound
	}
	return value, nil
}

func (p *PostgresStore) CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) error {
	tag, err := p.pool.Exec(ctx, querySwap, key, prev, next, pgExpiry(ttl))
	if err != nil {
		return fmt.Errorf("postgres compare-and-swap failed: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := p.pool.QueryRow(ctx, queryExists, key).Scan(&exists); err != nil {
		return fmt.Errorf("postgres compare-and-swap lookup failed: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func (p *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx, queryDelete, key); err != nil {
		return fmt.Errorf("postgres delete failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx, queryKeys, prefix)
	if err != nil {
		return nil, fmt.Errorf("postgres keys failed: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres keys scan failed: %w", err)
	}
	return keys, nil
}

func (p *PostgresStore) Sweep(ctx context.Context) (int, error) {
	tag, err := p.pool.Exec(ctx, querySweep)
	if err != nil {
		return 0, fmt.Errorf("postgres sweep failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
