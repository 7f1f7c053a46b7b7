// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nft3d-scanner/internal/adapter"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metrics"
	"github.com/nft3d-scanner/internal/types"
)

// Service interfaces for dependency injection and testing

// DiscoveryServiceInterface defines the discovery operations used by the API
type DiscoveryServiceInterface interface {
	Discover(ctx context.Context, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, error)
	FindAsset(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string) (*types.AssetRecord, error)
	Invalidate(ctx context.Context, address string) (int, error)
}

// ViewerServiceInterface defines the viewer operations used by the API
type ViewerServiceInterface interface {
	ResolveURL(ctx context.Context, raw string) string
	RecordTechnical(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string, stats types.MeshStats) (*types.AssetRecord, error)
}

// CredentialServiceInterface defines the credential operations used by the API
type CredentialServiceInterface interface {
	Update(ctx context.Context, apiKey string) error
	Configured() bool
}

// ProviderHealthReporter reports NFT provider request statistics
type ProviderHealthReporter interface {
	Health() *adapter.ProviderHealth
}

// Dependencies are the services the server routes to
type Dependencies struct {
	Discovery   DiscoveryServiceInterface
	Viewer      ViewerServiceInterface
	Credentials CredentialServiceInterface
	Provider    ProviderHealthReporter
	Metrics     *metrics.Collector
	// Gatherer backs /metrics; nil uses the default registry
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	handler     http.Handler
	httpServer  *http.Server
	discovery   DiscoveryServiceInterface
	viewer      ViewerServiceInterface
	credentials CredentialServiceInterface
	provider    ProviderHealthReporter
	metrics     *metrics.Collector
	gatherer    prometheus.Gatherer
	logger      *logging.Logger
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	RequestsPerSecond int // per client
	Burst             int
	AdminToken        string
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.GetGlobalLogger()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:      mux.NewRouter(),
		discovery:   deps.Discovery,
		viewer:      deps.Viewer,
		credentials: deps.Credentials,
		provider:    deps.Provider,
		metrics:     deps.Metrics,
		gatherer:    deps.Gatherer,
		logger:      deps.Logger.Component("api"),
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// order matters
	s.router.Use(RequestIDMiddleware(s.logger))
	s.router.Use(LoggingMiddleware(s.metrics))
	s.router.Use(RecoveryMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	// CORS wraps the router so preflight requests never hit method matching
	s.handler = CORSMiddleware(s.router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/networks", s.handleListNetworks).Methods("GET")

	// Asset endpoints
	api.HandleFunc("/addresses/{address}/assets", s.handleListAssets).Methods("GET")
	api.HandleFunc("/addresses/{address}/assets/{contract}/{tokenId}", s.handleGetAsset).Methods("GET")
	api.HandleFunc("/addresses/{address}/assets/{contract}/{tokenId}/technical", s.handleRecordTechnical).Methods("POST")
	api.HandleFunc("/addresses/{address}/cache", s.handleInvalidateAddress).Methods("DELETE")

	api.HandleFunc("/models/resolve", s.handleResolveModel).Methods("GET")

	requireAdmin := AdminAuthMiddleware(s.config.AdminToken)
	api.Handle("/credential", requireAdmin(http.HandlerFunc(s.handleUpdateCredential))).Methods("PUT")
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}
