package resilience

import (
	"time"
)

// FromSettings builds a RetryConfig from configuration values. Non-positive
// values keep the defaults.
func FromSettings(maxAttempts, initialBackoffMs, budgetSecs, attemptTimeoutSecs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		cfg.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if budgetSecs > 0 {
		cfg.MaxElapsed = time.Duration(budgetSecs) * time.Second
	}
	if attemptTimeoutSecs > 0 {
		cfg.AttemptTimeout = time.Duration(attemptTimeoutSecs) * time.Second
	}
	return cfg
}
