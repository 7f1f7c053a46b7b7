// Package adapter talks to the NFT indexing provider.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/metrics"
	"github.com/nft3d-scanner/internal/models"
	"github.com/nft3d-scanner/internal/ratelimit"
	"github.com/nft3d-scanner/internal/retry"
	"github.com/nft3d-scanner/internal/types"
)

const providerName = "alchemy"

// Default client settings
const (
	DefaultBaseURLTemplate = "https://%s.g.alchemy.com/v2/%s"
	DefaultPageSize        = 20
	DefaultTokenURITimeout = 30 * time.Second
	DefaultRequestTimeout  = 60 * time.Second
)

// maxErrorBody limits how much of a failed response is kept for logging
const maxErrorBody = 512

// AlchemyConfig configures an AlchemyClient
type AlchemyConfig struct {
	APIKey string
	// BaseURLTemplate takes the network slug and the API key
	BaseURLTemplate string
	PageSize        int
	MaxRetries      int
	TokenURITimeout time.Duration
	RequestTimeout  time.Duration

	// Backoff is shared by every request of the client. When nil one is
	// created from BaseDelay and MaxDelay.
	Backoff   *ratelimit.Backoff
	BaseDelay time.Duration
	MaxDelay  time.Duration

	HTTPClient *http.Client
	Sleep      ratelimit.SleepFunc
	Metrics    *metrics.Collector
	Logger     *logging.Logger
}

// AlchemyClient fetches owned NFTs page by page from the Alchemy NFT API.
// Retries on throttling, server errors and transport failures draw their
// delays from one backoff that persists across calls.
type AlchemyClient struct {
	mu     sync.RWMutex
	apiKey string

	baseURLTemplate string
	pageSize        int
	maxRetries      int
	tokenURITimeout time.Duration
	client          *http.Client
	backoff         *ratelimit.Backoff
	sleep           ratelimit.SleepFunc
	metrics         *metrics.Collector
	logger          *logging.Logger
	health          *healthTracker
}

// NewAlchemyClient creates a client. A missing API key is allowed here and
// reported when a request is attempted.
func NewAlchemyClient(cfg AlchemyConfig) (*AlchemyClient, error) {
	backoff := cfg.Backoff
	if backoff == nil {
		b, err := ratelimit.NewBackoff(&ratelimit.BackoffConfig{
			BaseDelay: cfg.BaseDelay,
			MaxDelay:  cfg.MaxDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("invalid backoff config: %w", err)
		}
		backoff = b
	}
	if cfg.MaxRetries < 0 {
		return nil, apperrors.NewConfigurationError("ALCHEMY_MAX_RETRIES", "cannot be negative")
	}
	if cfg.BaseURLTemplate == "" {
		cfg.BaseURLTemplate = DefaultBaseURLTemplate
	}
	// network slug first, then the API key
	if strings.Count(cfg.BaseURLTemplate, "%") != 2 || strings.Count(cfg.BaseURLTemplate, "%s") != 2 {
		return nil, apperrors.NewConfigurationError("ALCHEMY_BASE_URL", "must contain exactly two %s verbs")
	}

	c := &AlchemyClient{
		apiKey:          strings.TrimSpace(cfg.APIKey),
		baseURLTemplate: cfg.BaseURLTemplate,
		pageSize:        cfg.PageSize,
		maxRetries:      cfg.MaxRetries,
		tokenURITimeout: cfg.TokenURITimeout,
		client:          cfg.HTTPClient,
		backoff:         backoff,
		sleep:           cfg.Sleep,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		health:          newHealthTracker(providerName),
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.tokenURITimeout <= 0 {
		c.tokenURITimeout = DefaultTokenURITimeout
	}
	if c.client == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = DefaultRequestTimeout
		}
		c.client = &http.Client{Timeout: timeout}
	}
	if c.sleep == nil {
		c.sleep = ratelimit.Sleep
	}
	if c.logger == nil {
		c.logger = logging.GetGlobalLogger()
	}
	c.logger = c.logger.Component("alchemy")

	return c, nil
}

// ReloadCredential swaps the API key and resets the shared backoff
func (c *AlchemyClient) ReloadCredential(apiKey string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(apiKey)
	c.mu.Unlock()

	c.backoff.Reset()
	c.health.reset()
	c.logger.Info("Provider credential reloaded, backoff reset")
}

// HasCredential reports whether an API key is configured
func (c *AlchemyClient) HasCredential() bool {
	return c.credential() != ""
}

func (c *AlchemyClient) credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// Backoff exposes the shared retry backoff
func (c *AlchemyClient) Backoff() *ratelimit.Backoff {
	return c.backoff
}

// Health returns request statistics for the provider
func (c *AlchemyClient) Health() *ProviderHealth {
	return c.health.snapshot()
}

// FetchOwnedAssets fetches one page of NFTs owned by address on network.
// An empty pageKey requests the first page; query filters by collection
// name or symbol when set.
func (c *AlchemyClient) FetchOwnedAssets(ctx context.Context, address string, network types.NetworkInfo, pageKey, query string) (*models.OwnedNFTPage, error) {
	apiKey := c.credential()
	if apiKey == "" {
		return nil, apperrors.NewMissingCredentialError(providerName)
	}
	if network.ProviderNetwork == "" {
		return nil, apperrors.NewUnsupportedNetworkError(strconv.FormatInt(int64(network.ID), 10))
	}

	endpoint := c.endpoint(apiKey, network, address, pageKey, query)
	logger := c.logger.WithFields(map[string]interface{}{
		"network": network.ProviderNetwork,
		"address": address,
		"paged":   pageKey != "",
	})

	var page *models.OwnedNFTPage
	result := retry.Do(logging.WithLogger(ctx, logger), &retry.RetryConfig{
		MaxRetries: c.maxRetries,
		Backoff:    c.backoff,
		Retryable:  apperrors.IsRetryable,
		Sleep:      c.sleep,
		OnRetry: func(_ int, delay time.Duration, _ error) {
			c.metrics.RetryDelay(delay)
		},
	}, func(ctx context.Context, attempt int) error {
		p, err := c.doRequest(ctx, endpoint, network)
		if err != nil {
			return err
		}
		page = p
		return nil
	})

	if err := result.Err(); err != nil {
		return nil, err
	}

	if page.Skipped > 0 {
		logger.Warnf("Provider page contained %d malformed records", page.Skipped)
	}
	logger.WithFields(map[string]interface{}{
		"records":  len(page.OwnedNFTs),
		"hasNext":  page.HasNextPage(),
		"attempts": result.Attempts,
	}).Debug("Fetched owned NFT page")

	return page, nil
}

func (c *AlchemyClient) endpoint(apiKey string, network types.NetworkInfo, address, pageKey, query string) string {
	params := url.Values{}
	params.Set("owner", address)
	params.Set("withMetadata", "true")
	params.Set("excludeFilters[]", "SPAM")
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("refreshCache", "true")
	params.Set("tokenUriTimeoutInMs", strconv.FormatInt(c.tokenURITimeout.Milliseconds(), 10))
	params.Set("omitMetadata", "false")
	if pageKey != "" {
		params.Set("pageKey", pageKey)
	}
	if query = strings.TrimSpace(query); query != "" {
		params.Set("nameOrSymbol", query)
	}

	base := fmt.Sprintf(c.baseURLTemplate, network.ProviderNetwork, url.PathEscape(apiKey))
	return strings.TrimRight(base, "/") + "/getNFTs?" + params.Encode()
}

// doRequest performs a single attempt and classifies its failure
func (c *AlchemyClient) doRequest(ctx context.Context, endpoint string, network types.NetworkInfo) (*models.OwnedNFTPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("build provider request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.health.recordFailure()
		c.metrics.UpstreamAttempt(network.ProviderNetwork, "transport")
		// the URL carries the API key, so only the cause is kept
		return nil, apperrors.NewUpstreamTransportError(providerName, unwrapURLError(err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.health.recordFailure()
		c.metrics.UpstreamAttempt(network.ProviderNetwork, "rate_limited")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, apperrors.NewUpstreamRateLimitError(providerName)

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.health.recordFailure()
		c.metrics.UpstreamAttempt(network.ProviderNetwork, "status_"+strconv.Itoa(resp.StatusCode/100)+"xx")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, apperrors.NewUpstreamStatusError(providerName, resp.StatusCode, string(body))
	}

	var page models.OwnedNFTPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.health.recordFailure()
		c.metrics.UpstreamAttempt(network.ProviderNetwork, "decode")
		return nil, apperrors.NewUpstreamDecodeError(providerName, err)
	}

	c.health.recordSuccess(time.Since(start))
	c.metrics.UpstreamAttempt(network.ProviderNetwork, "ok")
	return &page, nil
}

func unwrapURLError(err error) error {
	if ue, ok := err.(*url.Error); ok {
		return ue.Err
	}
	return err
}
