package ratelimit

import (
	"context"
	"time"
)

// Pacer enforces a fixed delay between successive page requests of one
// pagination run. The first Wait of a run returns immediately.
type Pacer struct {
	delay time.Duration
	sleep SleepFunc
	calls int
}

// NewPacer creates a pacer. A nil sleep uses Sleep.
func NewPacer(delay time.Duration, sleep SleepFunc) *Pacer {
	if sleep == nil {
		sleep = Sleep
	}
	return &Pacer{delay: delay, sleep: sleep}
}

// Wait blocks before every request except the first
func (p *Pacer) Wait(ctx context.Context) error {
	p.calls++
	if p.calls == 1 {
		return nil
	}
	return p.sleep(ctx, p.delay)
}

// Delay returns the configured inter-page delay
func (p *Pacer) Delay() time.Duration {
	return p.delay
}
