package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresCacheStore keeps durable cache entries in the cache_entries table.
// Rows past their expiry are ignored on read and removed by PurgeExpired.
type PostgresCacheStore struct {
	db  *PostgresDB
	now func() time.Time
}

// NewPostgresCacheStore creates a cache store on db
func NewPostgresCacheStore(db *PostgresDB) *PostgresCacheStore {
	return &PostgresCacheStore{db: db, now: time.Now}
}

// Get returns the stored bytes. A missing or expired key is reported as
// (nil, false, nil).
func (s *PostgresCacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.Pool().QueryRow(ctx, `
		SELECT data FROM cache_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, s.now(),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set upserts value under key. A zero ttl keeps the row until deleted.
func (s *PostgresCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := s.now().Add(ttl)
		expiresAt = &t
	}
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO cache_entries (key, data, expires_at, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, value, expiresAt,
	)
	return err
}

// Delete removes one or more keys
func (s *PostgresCacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.db.Pool().Exec(ctx, `DELETE FROM cache_entries WHERE key = ANY($1)`, keys)
	return err
}

// DeletePrefix removes every key starting with prefix
func (s *PostgresCacheStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	tag, err := s.db.Pool().Exec(ctx, `DELETE FROM cache_entries WHERE starts_with(key, $1)`, prefix)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PurgeExpired deletes rows whose expiry has passed
func (s *PostgresCacheStore) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool().Exec(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.now())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
