// Package service holds the discovery orchestrator and the services built
// on top of it.
package service

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/nft3d-scanner/internal/cache"
	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metadata"
	"github.com/nft3d-scanner/internal/metrics"
	"github.com/nft3d-scanner/internal/models"
	"github.com/nft3d-scanner/internal/ratelimit"
	"github.com/nft3d-scanner/internal/types"
)

// DefaultMaxPages bounds the number of pages one discovery run may fetch
const DefaultMaxPages = 500

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidateAddress checks the 0x-prefixed 40 hex digit wallet format
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return apperrors.NewInvalidAddressError(address)
	}
	return nil
}

// Fetcher returns one page of assets owned by an address
type Fetcher interface {
	FetchOwnedAssets(ctx context.Context, address string, network types.NetworkInfo, pageKey, query string) (*models.OwnedNFTPage, error)
}

// DiscoveryConfig configures a DiscoveryService
type DiscoveryConfig struct {
	MaxPages int
	// PageDelay separates successive page requests of a run. Zero uses
	// ratelimit.DefaultPageDelay; pacing cannot be turned off.
	PageDelay time.Duration
	Sleep     ratelimit.SleepFunc
	Logger    *logging.Logger
	Metrics   *metrics.Collector
}

// DiscoveryService finds the 3D assets owned by an address. Results are
// served from the cache when valid; otherwise every page is fetched in
// order, normalized, filtered to records with a model, and cached as one
// list. A run that fails part way caches nothing.
type DiscoveryService struct {
	fetcher  Fetcher
	cache    *cache.Cache
	maxPages int
	delay    time.Duration
	sleep    ratelimit.SleepFunc
	logger   *logging.Logger
	metrics  *metrics.Collector
	group    singleflight.Group
}

// NewDiscoveryService creates a discovery service
func NewDiscoveryService(fetcher Fetcher, c *cache.Cache, cfg DiscoveryConfig) *DiscoveryService {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.PageDelay <= 0 {
		cfg.PageDelay = ratelimit.DefaultPageDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	return &DiscoveryService{
		fetcher:  fetcher,
		cache:    c,
		maxPages: cfg.MaxPages,
		delay:    cfg.PageDelay,
		sleep:    cfg.Sleep,
		logger:   cfg.Logger.Component("discovery"),
		metrics:  cfg.Metrics,
	}
}

// Discover returns the 3D assets of address on network, optionally narrowed
// by a provider side name or symbol search. An address without 3D assets
// yields an empty, non-nil slice.
//
// Concurrent calls for the same cache key share one run. A run keeps going
// when its caller's context is cancelled so the result still lands in the
// cache; the caller itself gets ctx.Err().
func (s *DiscoveryService) Discover(ctx context.Context, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if network.ProviderNetwork == "" {
		return nil, apperrors.NewUnsupportedNetworkError(fmt.Sprintf("%d", network.ID))
	}

	key := cache.NFTsKey(address, network.ID, query)

	var cached []types.AssetRecord
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("ignoring unreadable cache entry")
	} else if found {
		s.metrics.DiscoveryRun("cache_hit", 0, len(cached))
		if cached == nil {
			cached = []types.AssetRecord{}
		}
		return cached, nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx), key, address, network, query)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneAssets(res.Val.([]types.AssetRecord)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FindAsset returns one asset of address from its unfiltered discovery list
func (s *DiscoveryService) FindAsset(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string) (*types.AssetRecord, error) {
	assets, err := s.Discover(ctx, address, network, "")
	if err != nil {
		return nil, err
	}
	if i := indexOfAsset(assets, contract, tokenID); i >= 0 {
		return &assets[i], nil
	}
	return nil, apperrors.NewNotFoundError("asset", contract+"/"+tokenID)
}

// Invalidate drops every cached discovery result of address
func (s *DiscoveryService) Invalidate(ctx context.Context, address string) (int, error) {
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}
	return s.cache.InvalidateAddress(ctx, address)
}

func (s *DiscoveryService) run(ctx context.Context, key, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, error) {
	start := time.Now()
	logger := s.logger.WithFields(map[string]interface{}{
		"runId":   uuid.NewString(),
		"address": strings.ToLower(address),
		"chainId": network.ID,
	})
	if query != "" {
		logger = logger.WithField("query", query)
	}
	logger.Info("discovery started")

	assets, pages, err := s.paginate(ctx, logger, address, network, query)
	if err != nil {
		s.metrics.DiscoveryRun("failure", time.Since(start), 0)
		logger.WithError(err).WithField("pages", pages).Error("discovery failed")
		return nil, apperrors.NewDiscoveryFailedError(address, network.ID, err)
	}

	if err := s.cache.Set(ctx, key, assets); err != nil {
		logger.WithError(err).Warn("failed to cache discovery result")
	}

	s.metrics.DiscoveryRun("success", time.Since(start), len(assets))
	logger.WithFields(map[string]interface{}{
		"pages":    pages,
		"assets":   len(assets),
		"duration": time.Since(start).String(),
	}).Info("discovery finished")
	return assets, nil
}

// paginate fetches pages until the provider stops returning a cursor
func (s *DiscoveryService) paginate(ctx context.Context, logger *logging.Logger, address string, network types.NetworkInfo, query string) ([]types.AssetRecord, int, error) {
	pacer := ratelimit.NewPacer(s.delay, s.sleep)
	assets := make([]types.AssetRecord, 0)
	pageKey := ""

	for page := 1; ; page++ {
		if page > s.maxPages {
			return nil, page - 1, fmt.Errorf("pagination exceeded %d pages", s.maxPages)
		}
		if err := pacer.Wait(ctx); err != nil {
			return nil, page - 1, err
		}

		resp, err := s.fetcher.FetchOwnedAssets(ctx, address, network, pageKey, query)
		if err != nil {
			return nil, page - 1, err
		}

		kept := 0
		for i := range resp.OwnedNFTs {
			record := metadata.Normalize(&resp.OwnedNFTs[i], network)
			if record.Has3DModel() {
				assets = append(assets, *record)
				kept++
			}
		}
		logger.WithFields(map[string]interface{}{
			"page":    page,
			"records": len(resp.OwnedNFTs),
			"kept":    kept,
			"skipped": resp.Skipped,
		}).Debug("page processed")

		if !resp.HasNextPage() {
			return assets, page, nil
		}
		pageKey = resp.PageKey
	}
}

// cloneAssets copies a result shared between callers, including each
// record's candidate list
func cloneAssets(shared []types.AssetRecord) []types.AssetRecord {
	assets := make([]types.AssetRecord, len(shared))
	for i, a := range shared {
		a.ModelURLs = slices.Clone(a.ModelURLs)
		assets[i] = a
	}
	return assets
}

func indexOfAsset(assets []types.AssetRecord, contract, tokenID string) int {
	for i := range assets {
		if strings.EqualFold(assets[i].ContractAddress, contract) && assets[i].TokenID == tokenID {
			return i
		}
	}
	return -1
}
