package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/medicore/hospital-portal/app/config"
	appErrors "github.com/medicore/hospital-portal/app/errors"
)

// Config holds retry configuration
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// LoadConfig loads retry configuration from environment
func LoadConfig() *Config {
	cfg := &Config{
		MaxRetries:   config.GetInt("MAILER_MAX_RETRIES", 3),
		InitialDelay: time.Duration(config.GetInt("MAILER_RETRY_INITIAL_DELAY_MS", 1000)) * time.Millisecond,
		MaxDelay:     time.Duration(config.GetInt("MAILER_RETRY_MAX_DELAY_MS", 30000)) * time.Millisecond,
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return cfg
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	appErr, ok := err.(*appErrors.AppError)
	if !ok {
		// Unknown errors get retried
		return true
	}

	switch appErr.Code {
	case appErrors.ErrCodeEmailProvider:
		// Provider errors are usually transient (network, rate limits)
		return true
	case appErrors.ErrCodeInternal, appErrors.ErrCodeUnavailable:
		return true
	case appErrors.ErrCodeInvalidInput, appErrors.ErrCodePermanent:
		return false
	}

	return false
}

// CalculateDelay calculates exponential backoff delay
func CalculateDelay(attempt int, config *Config) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(2, float64(attempt)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// Retry executes fn with exponential backoff until it succeeds, returns a
// non-retryable error, or the attempt budget is spent.
func Retry(ctx context.Context, config *Config, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateDelay(attempt-1, config)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !IsRetryable(err) {
			return err
		}

		if attempt == config.MaxRetries {
			break
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
