package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nft3d-scanner/internal/config"
)

func testPostgresConfig() *config.PostgresConfig {
	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "nft3d_scanner",
		User:           "scanner",
		Password:       "scanner_dev_password",
		MaxConnections: 5,
	}
	if v := os.Getenv("TEST_POSTGRES_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TEST_POSTGRES_PASSWORD"); v != "" {
		cfg.Password = v
	}
	return cfg
}

// setupPostgres connects and migrates, skipping when Postgres is unavailable
func setupPostgres(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testPostgresConfig()
	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, RunMigrations(DatabaseURL(cfg), "../../"+DefaultMigrationsPath))
	return db
}

func TestDatabaseURL(t *testing.T) {
	got := DatabaseURL(&config.PostgresConfig{
		Host: "db", Port: "5433", User: "u", Password: "p@ss", Database: "nft",
	})
	assert.Equal(t, "postgres://u:p%40ss@db:5433/nft?sslmode=disable", got)
}

func TestPostgresCacheStore(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresCacheStore(db)
	ctx := testContext(t)

	key := "nfts:0xtest:" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.Delete(ctx, key) })

	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, key, []byte(`{"a":1}`), time.Hour))
	data, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(data))

	// expired rows are invisible and purged
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestPostgresCacheStore_DeletePrefix(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresCacheStore(db)
	ctx := testContext(t)

	prefix := "nfts:0xprefix" + time.Now().Format("150405.000000") + ":"
	require.NoError(t, store.Set(ctx, prefix+"1", []byte("a"), 0))
	require.NoError(t, store.Set(ctx, prefix+"137", []byte("b"), 0))

	n, err := store.DeletePrefix(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPostgresCredentialStore(t *testing.T) {
	db := setupPostgres(t)
	store := NewPostgresCredentialStore(db)
	ctx := testContext(t)

	require.NoError(t, store.SaveCredential(ctx, "first"))
	require.NoError(t, store.SaveCredential(ctx, "second"))

	key, err := store.LoadCredential(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", key)
}
