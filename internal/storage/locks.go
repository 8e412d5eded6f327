package db

import (
	"context"
	"fmt"
)

func (db *DB) TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error) {
	var acquired bool

	err := db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired)
	if err != nil {
		return false, fmt.Errorf("try acquire advisory lock: %w", err)
	}

	return acquired, nil
}

func (db *DB) ReleaseAdvisoryLock(ctx context.Context, lockID int64) error {
	if _, err := db.Pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID); err != nil {
		return fmt.Errorf("release advisory lock: %w", err)
	}

	return nil
}
