// Package ratelimit paces requests to the NFT provider.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Default backoff configuration values.
const (
	DefaultBaseDelay = 1 * time.Second
	DefaultMaxDelay  = 60 * time.Second
	DefaultPageDelay = 2 * time.Second
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff is a doubling retry delay shared by every request of a client.
// Its state survives between calls; Reset is the only way back to the base
// delay.
type Backoff struct {
	baseDelay    time.Duration
	maxDelay     time.Duration
	currentDelay time.Duration
	consecutive  int
	mu           sync.Mutex
}

// BackoffConfig holds configuration for a Backoff.
type BackoffConfig struct {
	// BaseDelay is the first delay handed out. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps the doubling. Default: 60s.
	MaxDelay time.Duration
}

// Validate checks if the configuration is valid.
func (c *BackoffConfig) Validate() error {
	if c.BaseDelay < 0 {
		return errors.New("base delay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("max delay cannot be negative")
	}
	if c.MaxDelay > 0 && c.BaseDelay > 0 && c.BaseDelay > c.MaxDelay {
		return errors.New("base delay cannot exceed max delay")
	}
	return nil
}

// NewBackoff creates a Backoff. A nil config uses the defaults.
func NewBackoff(cfg *BackoffConfig) (*Backoff, error) {
	if cfg == nil {
		cfg = &BackoffConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = DefaultBaseDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay == 0 {
		maxDelay = DefaultMaxDelay
	}
	if baseDelay > maxDelay {
		maxDelay = baseDelay
	}

	return &Backoff{
		baseDelay:    baseDelay,
		maxDelay:     maxDelay,
		currentDelay: baseDelay,
	}, nil
}

// Next returns the delay to wait before the next retry and doubles the
// stored delay, capped at the max delay.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.currentDelay
	b.consecutive++
	b.currentDelay *= 2
	if b.currentDelay > b.maxDelay {
		b.currentDelay = b.maxDelay
	}
	return delay
}

// Reset returns the backoff to its base delay
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutive = 0
	b.currentDelay = b.baseDelay
}

// Current returns the delay the next call to Next would hand out.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentDelay
}

// Consecutive returns how many delays were handed out since the last Reset.
func (b *Backoff) Consecutive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consecutive
}

// BaseDelay returns the configured base delay.
func (b *Backoff) BaseDelay() time.Duration {
	return b.baseDelay
}
