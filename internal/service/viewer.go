package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/nft3d-scanner/internal/cache"
	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metadata"
	"github.com/nft3d-scanner/internal/types"
)

// Renderer loads a model and reports its mesh statistics
type Renderer interface {
	Load(ctx context.Context, url string, format types.ModelFormat) (*types.MeshStats, error)
}

// URLResolver turns a model reference into a fetchable URL
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) string
}

// ViewerService hands assets to a renderer and records what it reports
type ViewerService struct {
	resolver URLResolver
	cache    *cache.Cache
	logger   *logging.Logger
}

// NewViewerService creates a viewer service
func NewViewerService(resolver URLResolver, c *cache.Cache, logger *logging.Logger) *ViewerService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &ViewerService{
		resolver: resolver,
		cache:    c,
		logger:   logger.Component("viewer"),
	}
}

// ResolveURL returns a fetchable URL for raw. Successful gateway
// resolutions are cached under the preview class.
func (v *ViewerService) ResolveURL(ctx context.Context, raw string) string {
	key := cache.PreviewKey(raw)
	var resolved string
	if found, err := v.cache.Get(ctx, key, &resolved); err == nil && found {
		return resolved
	}

	resolved = v.resolver.Resolve(ctx, raw)
	if resolved != raw {
		if err := v.cache.Set(ctx, key, resolved); err != nil {
			v.logger.WithError(err).Warn("failed to cache resolved URL")
		}
	}
	return resolved
}

// errNoMeshStats marks a renderer that reported success without statistics
var errNoMeshStats = stderrors.New("renderer returned no mesh statistics")

// Open tries the asset's candidates in priority order until the renderer
// loads one. On success the asset's technical and storage info are filled
// in from the loaded candidate.
func (v *ViewerService) Open(ctx context.Context, asset *types.AssetRecord, renderer Renderer) error {
	if !asset.Has3DModel() {
		return apperrors.NewNotFoundError("model", asset.ContractAddress+"/"+asset.TokenID)
	}

	var errs []error
	for _, candidate := range asset.ModelURLs {
		url := v.ResolveURL(ctx, candidate.URL)
		stats, err := renderer.Load(ctx, url, candidate.Format)
		if err == nil && stats == nil {
			err = errNoMeshStats
		}
		if err != nil {
			v.logger.WithError(err).WithFields(map[string]interface{}{
				"url":    url,
				"format": candidate.Format,
			}).Warn("renderer rejected model candidate")
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
			continue
		}

		asset.ApplyMeshStats(*stats)
		asset.Format = candidate.Format
		asset.Storage.URL = url
		if cp, ok := metadata.ParseContentPath(candidate.URL); ok {
			asset.Storage.Kind = types.StorageIPFS
			asset.Storage.Hash = cp.Hash
		}
		return nil
	}

	return apperrors.NewInternalError("no model candidate could be loaded", stderrors.Join(errs...))
}

// RecordTechnical stores renderer statistics on a cached asset without
// extending the lifetime of the cached list.
func (v *ViewerService) RecordTechnical(ctx context.Context, address string, network types.NetworkInfo, contract, tokenID string, stats types.MeshStats) (*types.AssetRecord, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	key := cache.NFTsKey(address, network.ID, "")

	var assets []types.AssetRecord
	found, err := v.cache.Get(ctx, key, &assets)
	if err != nil {
		return nil, err
	}
	i := indexOfAsset(assets, contract, tokenID)
	if !found || i < 0 {
		return nil, apperrors.NewNotFoundError("asset", contract+"/"+tokenID)
	}

	assets[i].ApplyMeshStats(stats)
	replaced, err := v.cache.Replace(ctx, key, assets)
	if err != nil {
		return nil, err
	}
	if !replaced {
		return nil, apperrors.NewNotFoundError("asset", contract+"/"+tokenID)
	}
	return &assets[i], nil
}
