package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nft3d-scanner/internal/adapter"
	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metrics"
	"github.com/nft3d-scanner/internal/types"
)

const (
	testAddress    = "0x1234567890abcdef1234567890abcdef12345678"
	testAdminToken = "s3cret"
)

// Mock services for testing
type mockDiscoveryService struct {
	discoverFunc   func(ctx context.Context, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, error)
	findFunc       func(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string) (*types.AssetRecord, error)
	invalidateFunc func(ctx context.Context, address string) (int, error)
}

func (m *mockDiscoveryService) Discover(ctx context.Context, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, error) {
	if m.discoverFunc != nil {
		return m.discoverFunc(ctx, address, network, query)
	}
	return []types.AssetRecord{}, nil
}

func (m *mockDiscoveryService) FindAsset(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string) (*types.AssetRecord, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, address, network, contract, tokenID)
	}
	return nil, apperrors.NewNotFoundError("asset", contract+"/"+tokenID)
}

func (m *mockDiscoveryService) Invalidate(ctx context.Context, address string) (int, error) {
	if m.invalidateFunc != nil {
		return m.invalidateFunc(ctx, address)
	}
	return 0, nil
}

type mockViewerService struct {
	resolveFunc func(ctx context.Context, raw string) string
	recordFunc  func(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string, stats types.MeshStats) (*types.AssetRecord, error)
}

func (m *mockViewerService) ResolveURL(ctx context.Context, raw string) string {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, raw)
	}
	return raw
}

func (m *mockViewerService) RecordTechnical(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string, stats types.MeshStats) (*types.AssetRecord, error) {
	if m.recordFunc != nil {
		return m.recordFunc(ctx, address, network, contract, tokenID, stats)
	}
	return nil, apperrors.NewNotFoundError("asset", contract+"/"+tokenID)
}

type mockCredentialService struct {
	key string
	err error
}

func (m *mockCredentialService) Update(ctx context.Context, apiKey string) error {
	if m.err != nil {
		return m.err
	}
	m.key = apiKey
	return nil
}

func (m *mockCredentialService) Configured() bool { return m.key != "" }

type mockProvider struct {
	healthy bool
}

func (m *mockProvider) Health() *adapter.ProviderHealth {
	return &adapter.ProviderHealth{Provider: "alchemy", IsHealthy: m.healthy}
}

type testServer struct {
	*Server
	discovery   *mockDiscoveryService
	viewer      *mockViewerService
	credentials *mockCredentialService
	registry    *prometheus.Registry
}

func createTestServer() *testServer {
	reg := prometheus.NewRegistry()
	ts := &testServer{
		discovery:   &mockDiscoveryService{},
		viewer:      &mockViewerService{},
		credentials: &mockCredentialService{key: "key"},
		registry:    reg,
	}
	ts.Server = NewServer(&ServerConfig{Host: "localhost", Port: "0", RequestsPerSecond: 1000, Burst: 1000, AdminToken: testAdminToken}, Dependencies{
		Discovery:   ts.discovery,
		Viewer:      ts.viewer,
		Credentials: ts.credentials,
		Provider:    &mockProvider{healthy: true},
		Metrics:     metrics.NewCollector(reg),
		Gatherer:    reg,
		Logger:      logging.NewDiscardLogger(),
	})
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.ServiceError {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := createTestServer()

	w := ts.do(httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["credentialConfigured"])

	ts.credentials.key = ""
	w = ts.do(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := createTestServer()

	ts.do(httptest.NewRequest("GET", "/api/networks", nil))
	w := ts.do(httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nft3d_http_requests_total{route="/api/networks",status="200"} 1`)
}

func TestRequestID(t *testing.T) {
	ts := createTestServer()

	w := ts.do(httptest.NewRequest("GET", "/health", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = ts.do(req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	ts := createTestServer()

	w := ts.do(httptest.NewRequest("OPTIONS", "/api/credential", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCompression(t *testing.T) {
	ts := createTestServer()

	req := httptest.NewRequest("GET", "/api/networks", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := ts.do(req)

	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)

	var resp struct {
		Networks []types.NetworkInfo `json:"networks"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Len(t, resp.Networks, 5)
}

func TestRecoveryMiddleware(t *testing.T) {
	ts := createTestServer()
	ts.discovery.discoverFunc = func(context.Context, string, types.NetworkInfo, string) ([]types.AssetRecord, error) {
		panic("boom")
	}

	w := ts.do(httptest.NewRequest("GET", "/api/addresses/"+testAddress+"/assets", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrCodeInternalError, decodeError(t, w).Code)
}

func TestRateLimit(t *testing.T) {
	reg := prometheus.NewRegistry()
	server := NewServer(&ServerConfig{RequestsPerSecond: 1, Burst: 2}, Dependencies{
		Discovery: &mockDiscoveryService{},
		Viewer:    &mockViewerService{},
		Gatherer:  reg,
		Logger:    logging.NewDiscardLogger(),
	})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/networks", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		last = httptest.NewRecorder()
		server.Handler().ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	rejected := decodeError(t, last)
	assert.Equal(t, ErrCodeRateLimitExceeded, rejected.Code)
	assert.Equal(t, float64(1), rejected.Details["retryAfter"])
	assert.Equal(t, float64(2), rejected.Details["burst"])

	// another client has its own budget
	req := httptest.NewRequest("GET", "/api/networks", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func credentialRequest(body, token string) *http.Request {
	req := httptest.NewRequest("PUT", "/api/credential", bytes.NewBufferString(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUpdateCredential(t *testing.T) {
	ts := createTestServer()

	w := ts.do(credentialRequest(`{"apiKey":"new"}`, testAdminToken))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "new", ts.credentials.key)

	w = ts.do(credentialRequest(`{"key":"x"}`, testAdminToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.credentials.err = apperrors.NewInvalidParameterError("apiKey", "must not be empty")
	w = ts.do(credentialRequest(`{"apiKey":" "}`, testAdminToken))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PARAMETER", decodeError(t, w).Code)
}

func TestUpdateCredential_RequiresAdminToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"wrong token", "guess"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := createTestServer()

			w := ts.do(credentialRequest(`{"apiKey":"attacker"}`, tt.token))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, ErrCodeUnauthorized, decodeError(t, w).Code)
			assert.Equal(t, "key", ts.credentials.key)
		})
	}
}

func TestUpdateCredential_DisabledWithoutToken(t *testing.T) {
	creds := &mockCredentialService{key: "key"}
	server := NewServer(&ServerConfig{}, Dependencies{
		Discovery:   &mockDiscoveryService{},
		Viewer:      &mockViewerService{},
		Credentials: creds,
		Gatherer:    prometheus.NewRegistry(),
		Logger:      logging.NewDiscardLogger(),
	})

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, credentialRequest(`{"apiKey":"new"}`, "anything"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrCodeServiceUnavailable, decodeError(t, w).Code)
	assert.Equal(t, "key", creds.key)
}
