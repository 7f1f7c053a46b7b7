package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/ratelimit"
)

// DefaultMaxRetries is the number of retries after the first attempt
const DefaultMaxRetries = 3

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxRetries int                           // Retries after the first attempt
	Backoff    *ratelimit.Backoff            // Shared delay source; its state outlives the call
	Retryable  func(err error) bool          // Decides whether an error is worth another attempt
	Sleep      ratelimit.SleepFunc           // Defaults to ratelimit.Sleep
	OnRetry    func(attempt int, delay time.Duration, err error)
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int             `json:"attempts"`
	Success       bool            `json:"success"`
	Exhausted     bool            `json:"exhausted"`
	Delays        []time.Duration `json:"delays"`
	TotalDuration time.Duration   `json:"totalDuration"`
	LastError     error           `json:"lastError,omitempty"`
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns a non-retryable error, the retry
// budget is spent or ctx is done. Delays come from the shared backoff.
func Do(ctx context.Context, config *RetryConfig, fn RetryFunc) *RetryResult {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	sleep := config.Sleep
	if sleep == nil {
		sleep = ratelimit.Sleep
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	result := &RetryResult{}
	maxAttempts := config.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(startTime)
			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		if !retryable(err) {
			break
		}

		if attempt == maxAttempts {
			result.Exhausted = true
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		delay := config.Backoff.Next()
		result.Delays = append(result.Delays, delay)

		logger.WithFields(map[string]interface{}{
			"attempt":    attempt,
			"maxRetries": config.MaxRetries,
			"delay":      delay.String(),
			"error":      err.Error(),
		}).Warn("Operation failed, retrying with backoff")

		if config.OnRetry != nil {
			config.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			logger.WithError(err).Warn("Retry cancelled during backoff")
			result.LastError = err
			break
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// Err returns nil on success, otherwise the last error annotated with the
// attempt count when the budget was spent.
func (r *RetryResult) Err() error {
	if r.Success {
		return nil
	}
	if r.Exhausted {
		return fmt.Errorf("operation failed after %d attempts: %w", r.Attempts, r.LastError)
	}
	return r.LastError
}
