package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.CacheLookup("memory", true)
	c.CacheLookup("memory", false)
	c.CacheLookup("memory", false)
	c.UpstreamAttempt("eth-mainnet", "rate_limited")
	c.GatewayProbe("https://ipfs.io/ipfs/", true)
	c.DiscoveryRun("success", 3*time.Second, 4)
	c.HTTPRequest("/api/networks", 200)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("memory", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("memory", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamAttempts.WithLabelValues("eth-mainnet", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.gatewayProbes.WithLabelValues("https://ipfs.io/ipfs/", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discoveryRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequests.WithLabelValues("/api/networks", "200")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CacheLookup("durable", true)
		c.RetryDelay(time.Second)
		c.DiscoveryRun("failed", time.Second, 0)
	})
}
