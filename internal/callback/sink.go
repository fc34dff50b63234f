// Package callback delivers finished batch payloads to caller-supplied
// webhook URLs.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one delivery.
const DefaultTimeout = 60 * time.Second

// Status records the outcome of one delivery. A failed delivery never
// fails the batch that produced it.
type Status struct {
	URL        string    `json:"url"`
	Delivered  bool      `json:"delivered"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	AttemptAt  time.Time `json:"attemptedAt"`
	DurationMS int64     `json:"durationMs"`
}

// Sink posts a JSON payload to url.
type Sink interface {
	Post(ctx context.Context, url string, payload any) Status
}

// HTTPSink is a Sink backed by its own http.Client.
type HTTPSink struct {
	client *http.Client
}

// NewHTTPSink creates an HTTPSink. A non-positive timeout selects
// DefaultTimeout.
func NewHTTPSink(timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPSink{client: &http.Client{Timeout: timeout}}
}

// Post delivers payload once. Non-2xx responses, timeouts and transport
// errors are reported in the returned Status.
func (s *HTTPSink) Post(ctx context.Context, url string, payload any) Status {
	st := Status{URL: url, AttemptAt: time.Now().UTC()}
	err := s.post(ctx, url, payload, &st)
	st.DurationMS = time.Since(st.AttemptAt).Milliseconds()

	if err != nil {
		st.Error = err.Error()
		zap.L().Warn("callback: delivery failed",
			zap.String("url", url),
			zap.Int("status", st.StatusCode),
			zap.Error(err),
		)
		return st
	}

	st.Delivered = true
	zap.L().Info("callback: delivered",
		zap.String("url", url),
		zap.Int("status", st.StatusCode),
		zap.Int64("duration_ms", st.DurationMS),
	)
	return st
}

func (s *HTTPSink) post(ctx context.Context, url string, payload any, st *Status) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "callback: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "callback: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "callback: request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	st.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("callback: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
