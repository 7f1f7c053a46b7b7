package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nft3d-scanner/internal/adapter"
	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/types"
)

type mockCredentialStore struct {
	value   string
	saveErr error
	saves   int
}

func (m *mockCredentialStore) LoadCredential(ctx context.Context) (string, error) {
	return m.value, nil
}

func (m *mockCredentialStore) SaveCredential(ctx context.Context, apiKey string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.value = apiKey
	return nil
}

type mockReloader struct {
	key     string
	reloads int
}

func (m *mockReloader) ReloadCredential(apiKey string) {
	m.key = apiKey
	m.reloads++
}

func (m *mockReloader) HasCredential() bool { return m.key != "" }

type mockClearer struct{ clears int }

func (m *mockClearer) ClearMemory() { m.clears++ }

func TestCredentialInit(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		fallback  string
		wantKey   string
		wantSaves int
	}{
		{"stored wins", "stored", "env", "stored", 0},
		{"seed from fallback", "", " env ", "env", 1},
		{"nothing configured", "", "", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockCredentialStore{value: tt.stored}
			client := &mockReloader{}
			svc := NewCredentialService(store, client, &mockClearer{}, logging.NewDiscardLogger())

			require.NoError(t, svc.Init(context.Background(), tt.fallback))
			assert.Equal(t, tt.wantKey, client.key)
			assert.Equal(t, tt.wantSaves, store.saves)
			assert.Equal(t, tt.wantKey != "", svc.Configured())
		})
	}
}

func TestCredentialUpdate(t *testing.T) {
	store := &mockCredentialStore{}
	client := &mockReloader{}
	clearer := &mockClearer{}
	svc := NewCredentialService(store, client, clearer, logging.NewDiscardLogger())

	require.NoError(t, svc.Update(context.Background(), "  new-key "))
	assert.Equal(t, "new-key", store.value)
	assert.Equal(t, "new-key", client.key)
	assert.Equal(t, 1, clearer.clears)

	err := svc.Update(context.Background(), "   ")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
	assert.Equal(t, 1, client.reloads)
}

func TestCredentialUpdate_StoreFailure(t *testing.T) {
	store := &mockCredentialStore{saveErr: errors.New("disk full")}
	client := &mockReloader{}
	clearer := &mockClearer{}
	svc := NewCredentialService(store, client, clearer, logging.NewDiscardLogger())

	err := svc.Update(context.Background(), "new-key")
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryDatabase))
	assert.Zero(t, client.reloads)
	assert.Zero(t, clearer.clears)
}

// TestCredentialUpdate_ResetsBackoffAndCache rotates the key of a throttled
// client: the shared backoff starts again from the base delay and the fast
// cache tier is emptied.
func TestCredentialUpdate_ResetsBackoffAndCache(t *testing.T) {
	var throttle atomic.Bool
	throttle.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if throttle.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ownedNfts": []}`))
	}))
	t.Cleanup(srv.Close)

	rec := &sleepRecorder{}
	client, err := adapter.NewAlchemyClient(adapter.AlchemyConfig{
		APIKey:          "old-key",
		BaseURLTemplate: srv.URL + "/%s/v2/%s",
		MaxRetries:      1,
		BaseDelay:       time.Second,
		MaxDelay:        60 * time.Second,
		Sleep:           rec.sleep,
		Logger:          logging.NewDiscardLogger(),
	})
	require.NoError(t, err)

	c, _ := setupTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "preview:x", "y"))

	_, err = client.FetchOwnedAssets(ctx, testOwner, ethereum, "", "")
	require.Error(t, err)
	assert.Equal(t, 2*time.Second, client.Backoff().Current())

	svc := NewCredentialService(&mockCredentialStore{}, client, c, logging.NewDiscardLogger())
	require.NoError(t, svc.Update(ctx, "new-key"))

	assert.Equal(t, time.Second, client.Backoff().Current())
	assert.Zero(t, client.Health().ConsecutiveFails)

	// the value is still served by the durable tier after the fast tier is cleared
	var s string
	found, err := c.Get(ctx, "preview:x", &s)
	require.NoError(t, err)
	assert.True(t, found)

	throttle.Store(false)
	_, err = client.FetchOwnedAssets(ctx, testOwner, types.NetworkInfo{ID: 1, ProviderNetwork: "eth-mainnet"}, "", "")
	require.NoError(t, err)
}
