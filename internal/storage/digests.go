package db

import (
	"context"
	"fmt"
	"time"

	"github.com/feedbrew/feedbrew/internal/core/domain"
)

// CreateDigest stores a composed digest.
func (db *DB) CreateDigest(ctx context.Context, d *domain.Digest) error {
	err := db.Pool.QueryRow(ctx, `
INSERT INTO digests (processed_feed_id, content, start_time, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`, d.ProcessedFeedID, SanitizeUTF8(d.Content), d.StartTime, d.CreatedAt).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("create digest: %w", err)
	}

	return nil
}

// DigestByDate returns the digest of a processed feed created on the given
// UTC calendar day.
func (db *DB) DigestByDate(ctx context.Context, processedFeedID int64, day time.Time) (*domain.Digest, error) {
	var d domain.Digest

	err := db.Pool.QueryRow(ctx, `
SELECT id, processed_feed_id, content, start_time, created_at
FROM digests
WHERE processed_feed_id = $1 AND created_at::date = $2::date
ORDER BY created_at DESC
LIMIT 1
`, processedFeedID, day).Scan(&d.ID, &d.ProcessedFeedID, &d.Content, &d.StartTime, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("digest by date: %w", mapError(err))
	}

	return &d, nil
}

// LatestDigest returns the newest digest of a processed feed.
func (db *DB) LatestDigest(ctx context.Context, processedFeedID int64) (*domain.Digest, error) {
	var d domain.Digest

	err := db.Pool.QueryRow(ctx, `
SELECT id, processed_feed_id, content, start_time, created_at
FROM digests
WHERE processed_feed_id = $1
ORDER BY created_at DESC
LIMIT 1
`, processedFeedID).Scan(&d.ID, &d.ProcessedFeedID, &d.Content, &d.StartTime, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("latest digest: %w", mapError(err))
	}

	return &d, nil
}
