package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/resilience"
)

// jsonInstruction is appended to prompts that never mention JSON. Some
// services refuse JSON mode unless the prompt asks for it.
const jsonInstruction = "\n\nReturn your answer as JSON."

// ProviderError is returned once a call has exhausted its retries or hit
// a permanent failure.
type ProviderError struct {
	Attempts  int
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion: failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Client calls a Service in JSON mode under a retry policy.
type Client struct {
	svc   Service
	retry resilience.RetryConfig
}

// NewClient creates a Client. Retry attempts are logged through
// resilience.RetryLogger.
func NewClient(svc Service, retry resilience.RetryConfig) *Client {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("completion", "complete")
	}
	return &Client{svc: svc, retry: retry}
}

// Call sends system and user prompts in JSON mode and returns the raw
// response text. Transient failures are retried with exponential backoff;
// anything else fails immediately. The returned error is a *ProviderError.
func (c *Client) Call(ctx context.Context, system, user string) (string, error) {
	if !strings.Contains(strings.ToLower(user), "json") {
		user += jsonInstruction
	}
	req := Request{System: system, User: user, JSONMode: true}

	attempts := 0
	start := time.Now()
	text, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (string, error) {
		attempts++
		return c.svc.Complete(ctx, req)
	})
	if err != nil {
		perr := &ProviderError{Attempts: attempts, Transient: resilience.IsTransient(err), Err: err}
		zap.L().Warn("completion: call failed",
			zap.Int("attempts", attempts),
			zap.Bool("transient", perr.Transient),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", perr
	}

	zap.L().Debug("completion: call succeeded",
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}
