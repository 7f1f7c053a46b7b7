// Package metrics exposes Prometheus counters for the discovery pipeline.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nft3d"

// Collector holds the pipeline metrics
type Collector struct {
	cacheLookups       *prometheus.CounterVec
	upstreamAttempts   *prometheus.CounterVec
	upstreamRetryDelay prometheus.Histogram
	gatewayProbes      *prometheus.CounterVec
	discoveryRuns      *prometheus.CounterVec
	discoveryDuration  prometheus.Histogram
	discoveredAssets   prometheus.Histogram
	httpRequests       *prometheus.CounterVec
}

// NewCollector registers the metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		),
		upstreamAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_attempts_total",
				Help:      "Provider request attempts by network and result.",
			},
			[]string{"network", "result"},
		),
		upstreamRetryDelay: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_retry_delay_seconds",
				Help:      "Backoff delays applied before provider retries.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 60},
			},
		),
		gatewayProbes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_probes_total",
				Help:      "IPFS gateway probes by gateway and result.",
			},
			[]string{"gateway", "result"},
		),
		discoveryRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_runs_total",
				Help:      "Discovery runs by outcome.",
			},
			[]string{"outcome"},
		),
		discoveryDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovery_duration_seconds",
				Help:      "Duration of uncached discovery runs.",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		discoveredAssets: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "discovered_assets",
				Help:      "3D assets found per discovery run.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "API requests by route and status.",
			},
			[]string{"route", "status"},
		),
	}
}

// CacheLookup records a hit or miss on one tier
func (c *Collector) CacheLookup(tier string, hit bool) {
	if c == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	c.cacheLookups.WithLabelValues(tier, outcome).Inc()
}

// UpstreamAttempt records one provider request
func (c *Collector) UpstreamAttempt(network, result string) {
	if c == nil {
		return
	}
	c.upstreamAttempts.WithLabelValues(network, result).Inc()
}

// RetryDelay records a backoff delay before a retry
func (c *Collector) RetryDelay(d time.Duration) {
	if c == nil {
		return
	}
	c.upstreamRetryDelay.Observe(d.Seconds())
}

// GatewayProbe records one gateway probe
func (c *Collector) GatewayProbe(gateway string, ok bool) {
	if c == nil {
		return
	}
	c.gatewayProbes.WithLabelValues(gateway, strconv.FormatBool(ok)).Inc()
}

// DiscoveryRun records the end of a discovery run
func (c *Collector) DiscoveryRun(outcome string, took time.Duration, assets int) {
	if c == nil {
		return
	}
	c.discoveryRuns.WithLabelValues(outcome).Inc()
	if outcome == "cache_hit" {
		return
	}
	c.discoveryDuration.Observe(took.Seconds())
	if outcome == "success" {
		c.discoveredAssets.Observe(float64(assets))
	}
}

// HTTPRequest records one API request
func (c *Collector) HTTPRequest(route string, status int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
