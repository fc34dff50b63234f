// Package completion issues prompts to a text-completion service with a
// fixed retry policy.
package completion

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-qualifier/internal/resilience"
	"github.com/sells-group/company-qualifier/pkg/anthropic"
)

// Request is a single completion call. JSONMode asks the service to
// answer with a JSON object.
type Request struct {
	System   string
	User     string
	JSONMode bool
}

// Service is a text-completion capability. Errors worth retrying are
// marked with resilience.TransientError or are recognised by
// resilience.IsTransient.
type Service interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrEmptyResponse is returned when the service answers with no text.
var ErrEmptyResponse = eris.New("completion: empty response")

// jsonPrefill starts the assistant turn so the model continues a JSON object.
const jsonPrefill = "{"

// AnthropicService implements Service with the Anthropic Messages API.
type AnthropicService struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicService creates an AnthropicService. An empty model selects
// anthropic.DefaultModel and a non-positive maxTokens selects 500.
func NewAnthropicService(client anthropic.Client, model string, maxTokens int64, temperature float64) *AnthropicService {
	if model == "" {
		model = anthropic.DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &AnthropicService{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Complete sends req and returns the response text. In JSON mode the
// prefill is restored so the caller sees the whole object.
func (s *AnthropicService) Complete(ctx context.Context, req Request) (string, error) {
	msgs := []anthropic.Message{{Role: "user", Content: req.User}}
	if req.JSONMode {
		msgs = append(msgs, anthropic.Message{Role: "assistant", Content: jsonPrefill})
	}

	temp := s.temperature
	mreq := anthropic.MessageRequest{
		Model:       s.model,
		MaxTokens:   s.maxTokens,
		Messages:    msgs,
		Temperature: &temp,
	}
	if req.System != "" {
		mreq.System = anthropic.CachedSystem(req.System)
	}

	resp, err := s.client.CreateMessage(ctx, mreq)
	if err != nil {
		return "", resilience.ClassifyStatus(err, anthropic.StatusCode(err))
	}
	resp.Usage.LogCost(s.model, "completion")

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		zap.L().Warn("completion: empty response",
			zap.String("model", s.model),
			zap.String("stop_reason", resp.StopReason),
		)
		return "", ErrEmptyResponse
	}

	if req.JSONMode && !strings.HasPrefix(strings.TrimSpace(text), jsonPrefill) {
		text = jsonPrefill + text
	}
	return text, nil
}
