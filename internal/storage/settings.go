package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	coreerrors "github.com/feedbrew/feedbrew/internal/core/errors"
)

// Application setting keys.
const (
	SettingAuthCode           = "auth_code"
	SettingMaxArticlesPerFeed = "max_articles_per_feed"
)

// DefaultMaxArticlesPerFeed caps rendered feed entries when no setting is
// stored.
const DefaultMaxArticlesPerFeed = 100

// GetSetting returns the value stored under key, or coreerrors.ErrNotFound.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string

	err := db.Pool.QueryRow(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, mapError(err))
	}

	return value, nil
}

// SetSetting upserts a key/value setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := db.Pool.Exec(ctx, `
INSERT INTO app_settings (key, value) VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}

	return nil
}

// AuthCode returns the shared feed access code, empty when authentication is
// not configured.
func (db *DB) AuthCode(ctx context.Context) (string, error) {
	code, err := db.GetSetting(ctx, SettingAuthCode)
	if errors.Is(err, coreerrors.ErrNotFound) {
		return "", nil
	}

	return code, err
}

// MaxArticlesPerFeed returns the global cap on rendered feed entries.
func (db *DB) MaxArticlesPerFeed(ctx context.Context) (int, error) {
	raw, err := db.GetSetting(ctx, SettingMaxArticlesPerFeed)
	if errors.Is(err, coreerrors.ErrNotFound) {
		return DefaultMaxArticlesPerFeed, nil
	}

	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultMaxArticlesPerFeed, nil
	}

	return n, nil
}
