package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLocker — блокировка на таблице publish_locks.
//
// Строка с истёкшим expires_at перехватывается следующим TryAcquire,
// поэтому отдельная очистка не нужна.
type PostgresLocker struct {
	pool *pgxpool.Pool
}

// NewPostgresLocker создаёт PostgresLocker.
func NewPostgresLocker(pool *pgxpool.Pool) *PostgresLocker {
	return &PostgresLocker{pool: pool}
}

// TryAcquire реализует Locker.
func (l *PostgresLocker) TryAcquire(ctx context.Context, key string, lease time.Duration) (*Handle, error) {
	h := newHandle(key, lease)

	query := `
		INSERT INTO publish_locks (key, token, expires_at)
		VALUES ($1, $2, now() + $3 * interval '1 millisecond')
		ON CONFLICT (key) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		WHERE publish_locks.expires_at <= now()
		RETURNING expires_at
	`
	err := l.pool.QueryRow(ctx, query, h.Key, h.Token, lease.Milliseconds()).Scan(&h.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotAcquired
	}
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return h, nil
}

// Release реализует Locker.
func (l *PostgresLocker) Release(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	_, err := l.pool.Exec(ctx, `DELETE FROM publish_locks WHERE key = $1 AND token = $2`, h.Key, h.Token)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", h.Key, err)
	}
	return nil
}
