package adapter

import (
	"sync"
	"time"
)

// ProviderHealth represents the health status of the NFT provider
type ProviderHealth struct {
	Provider         string        `json:"provider"`
	TotalRequests    int64         `json:"totalRequests"`
	SuccessfulReqs   int64         `json:"successfulRequests"`
	FailedReqs       int64         `json:"failedRequests"`
	SuccessRate      float64       `json:"successRate"`
	AverageLatency   time.Duration `json:"averageLatency"`
	LastSuccess      time.Time     `json:"lastSuccess"`
	LastFailure      time.Time     `json:"lastFailure"`
	ConsecutiveFails int           `json:"consecutiveFails"`
	IsHealthy        bool          `json:"isHealthy"`
}

// healthTracker accumulates per-attempt request outcomes
type healthTracker struct {
	mu sync.RWMutex

	provider         string
	totalRequests    int64
	successfulReqs   int64
	failedReqs       int64
	totalLatency     time.Duration
	lastSuccess      time.Time
	lastFailure      time.Time
	consecutiveFails int

	maxConsecutiveFails int
	minSuccessRate      float64
}

func newHealthTracker(provider string) *healthTracker {
	return &healthTracker{
		provider:            provider,
		maxConsecutiveFails: 5,
		minSuccessRate:      0.5,
	}
}

func (h *healthTracker) recordSuccess(duration time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.successfulReqs++
	h.totalLatency += duration
	h.lastSuccess = time.Now()
	h.consecutiveFails = 0
}

func (h *healthTracker) recordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.failedReqs++
	h.lastFailure = time.Now()
	h.consecutiveFails++
}

// reset clears the failure streak, e.g. after the credential changed
func (h *healthTracker) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFails = 0
}

func (h *healthTracker) snapshot() *ProviderHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var successRate float64
	if h.totalRequests > 0 {
		successRate = float64(h.successfulReqs) / float64(h.totalRequests)
	}

	var avgLatency time.Duration
	if h.successfulReqs > 0 {
		avgLatency = h.totalLatency / time.Duration(h.successfulReqs)
	}

	return &ProviderHealth{
		Provider:         h.provider,
		TotalRequests:    h.totalRequests,
		SuccessfulReqs:   h.successfulReqs,
		FailedReqs:       h.failedReqs,
		SuccessRate:      successRate,
		AverageLatency:   avgLatency,
		LastSuccess:      h.lastSuccess,
		LastFailure:      h.lastFailure,
		ConsecutiveFails: h.consecutiveFails,
		IsHealthy:        h.isHealthyLocked(),
	}
}

// isHealthyLocked checks health status (must be called with lock held)
func (h *healthTracker) isHealthyLocked() bool {
	if h.consecutiveFails >= h.maxConsecutiveFails {
		return false
	}

	// only judge the rate once there is enough data
	if h.totalRequests >= 10 {
		successRate := float64(h.successfulReqs) / float64(h.totalRequests)
		if successRate < h.minSuccessRate {
			return false
		}
	}

	return true
}
