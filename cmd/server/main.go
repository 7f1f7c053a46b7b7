// Package main provides the API server entry point for the NFT 3D-model scanner.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nft3d-scanner/internal/adapter"
	"github.com/nft3d-scanner/internal/api"
	"github.com/nft3d-scanner/internal/cache"
	"github.com/nft3d-scanner/internal/config"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metrics"
	"github.com/nft3d-scanner/internal/resolver"
	"github.com/nft3d-scanner/internal/service"
	"github.com/nft3d-scanner/internal/storage"
)

func main() {
	fmt.Println("NFT 3D Scanner API Server")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// Durable cache tier and credential store
	var (
		durable   cache.DurableStore
		credStore service.CredentialStore
	)
	switch cfg.Cache.Backend {
	case config.BackendPostgres:
		logger.Info("Connecting to Postgres...")
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()

		store := storage.NewPostgresCacheStore(postgres)
		durable = store
		credStore = storage.NewPostgresCredentialStore(postgres)
		go purgeExpired(ctx, store, cfg.Cache.CleanupInterval, logger)
	default:
		logger.Info("Connecting to Redis...")
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()

		durable = redis
		credStore = storage.NewRedisCredentialStore(redis)
	}
	logger.WithField("backend", cfg.Cache.Backend).Info("Durable cache tier ready")

	tiered := cache.New(durable, cache.Config{
		TTLs: cache.TTLs{
			NFTMetadata:  cfg.Cache.NFTMetadataTTL,
			AssetPreview: cfg.Cache.AssetPreviewTTL,
			WalletData:   cfg.Cache.WalletDataTTL,
		},
		MemoryTTL:       cfg.Cache.MemoryTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Logger:          logger,
		Metrics:         collector,
	})

	client, err := adapter.NewAlchemyClient(adapter.AlchemyConfig{
		BaseURLTemplate: cfg.Upstream.BaseURLTemplate,
		PageSize:        cfg.Upstream.PageSize,
		MaxRetries:      cfg.Upstream.MaxRetries,
		TokenURITimeout: cfg.Upstream.TokenURITimeout,
		RequestTimeout:  cfg.Upstream.RequestTimeout,
		BaseDelay:       cfg.Upstream.BaseDelay,
		MaxDelay:        cfg.Upstream.MaxDelay,
		Metrics:         collector,
		Logger:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create provider client")
	}

	logger.Info("Initializing services...")

	credentials := service.NewCredentialService(credStore, client, tiered, logger)
	if err := credentials.Init(ctx, cfg.Upstream.APIKey); err != nil {
		logger.WithError(err).Warn("Could not load provider credential")
	}

	gateways := resolver.New(cfg.Gateways.URLs,
		resolver.WithProbeTimeout(cfg.Gateways.ProbeTimeout),
		resolver.WithMetrics(collector),
		resolver.WithLogger(logger),
	)

	discovery := service.NewDiscoveryService(client, tiered, service.DiscoveryConfig{
		MaxPages:  cfg.Upstream.MaxPages,
		PageDelay: cfg.Upstream.PageDelay,
		Logger:    logger,
		Metrics:   collector,
	})
	viewer := service.NewViewerService(gateways, tiered, logger)

	if cfg.Server.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set; PUT /api/credential is disabled")
	}
	logger.Info("Services initialized")

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute, // a cold discovery run paginates with delays
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		AdminToken:        cfg.Server.AdminToken,
	}

	server := api.NewServer(serverConfig, api.Dependencies{
		Discovery:   discovery,
		Viewer:      viewer,
		Credentials: credentials,
		Provider:    client,
		Metrics:     collector,
		Logger:      logger,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Info("Server exited")
}

// purgeExpired deletes expired durable cache rows until ctx is done
func purgeExpired(ctx context.Context, store *storage.PostgresCacheStore, interval time.Duration, logger *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.WithError(err).Warn("Failed to purge expired cache rows")
				continue
			}
			if n > 0 {
				logger.WithField("rows", n).Debug("Purged expired cache rows")
			}
		}
	}
}
