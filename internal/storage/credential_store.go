package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CredentialKey names the stored provider API key in either backend
const CredentialKey = "alchemyApiKey"

// RedisCredentialStore keeps the provider API key in a Redis string
type RedisCredentialStore struct {
	redis *RedisCache
}

// NewRedisCredentialStore creates a credential store on r
func NewRedisCredentialStore(r *RedisCache) *RedisCredentialStore {
	return &RedisCredentialStore{redis: r}
}

// LoadCredential returns the stored key, or "" when none is saved
func (s *RedisCredentialStore) LoadCredential(ctx context.Context) (string, error) {
	data, ok, err := s.redis.Get(ctx, CredentialKey)
	if err != nil || !ok {
		return "", err
	}
	return string(data), nil
}

// SaveCredential stores the key without expiry
func (s *RedisCredentialStore) SaveCredential(ctx context.Context, apiKey string) error {
	return s.redis.Set(ctx, CredentialKey, []byte(apiKey), 0)
}

// PostgresCredentialStore keeps the provider API key in the settings table
type PostgresCredentialStore struct {
	db *PostgresDB
}

// NewPostgresCredentialStore creates a credential store on db
func NewPostgresCredentialStore(db *PostgresDB) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db}
}

// LoadCredential returns the stored key, or "" when none is saved
func (s *PostgresCredentialStore) LoadCredential(ctx context.Context) (string, error) {
	var value string
	err := s.db.Pool().QueryRow(ctx,
		`SELECT value FROM settings WHERE name = $1`, CredentialKey,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SaveCredential upserts the key
func (s *PostgresCredentialStore) SaveCredential(ctx context.Context, apiKey string) error {
	_, err := s.db.Pool().Exec(ctx, `
		INSERT INTO settings (name, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		CredentialKey, apiKey,
	)
	return err
}
