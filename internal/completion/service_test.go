package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/company-qualifier/internal/resilience"
	"github.com/sells-group/company-qualifier/pkg/anthropic"
	anthropicmocks "github.com/sells-group/company-qualifier/pkg/anthropic/mocks"
)

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestAnthropicService_JSONModePrefill(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == "claude-test" &&
			req.MaxTokens == 500 &&
			*req.Temperature == 0.1 &&
			len(req.System) == 1 && req.System[0].Text == "sys" &&
			len(req.Messages) == 2 &&
			req.Messages[0].Content == "user prompt" &&
			req.Messages[1].Role == "assistant" && req.Messages[1].Content == "{"
	})).Return(textResponse(`"match_score": 90}`), nil)

	svc := NewAnthropicService(client, "claude-test", 0, 0.1)
	text, err := svc.Complete(context.Background(), Request{System: "sys", User: "user prompt", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"match_score": 90}`, text)
}

func TestAnthropicService_PrefillNotDoubled(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse(` {"a": 1}`), nil)

	svc := NewAnthropicService(client, "", 0, 0)
	text, err := svc.Complete(context.Background(), Request{User: "u", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, ` {"a": 1}`, text)
}

func TestAnthropicService_PlainMode(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == anthropic.DefaultModel && len(req.Messages) == 1 && req.System == nil
	})).Return(textResponse("hello"), nil)

	svc := NewAnthropicService(client, "", 0, 0)
	text, err := svc.Complete(context.Background(), Request{User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestAnthropicService_EmptyResponse(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("  "), nil)

	svc := NewAnthropicService(client, "", 0, 0)
	_, err := svc.Complete(context.Background(), Request{User: "u", JSONMode: true})
	assert.ErrorIs(t, err, ErrEmptyResponse)
	assert.False(t, resilience.IsTransient(err))
}

func TestAnthropicService_PlainErrorPassesThrough(t *testing.T) {
	client := anthropicmocks.NewMockClient(t)
	boom := errors.New("invalid api key")
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, boom)

	svc := NewAnthropicService(client, "", 0, 0)
	_, err := svc.Complete(context.Background(), Request{User: "u"})
	assert.ErrorIs(t, err, boom)
	assert.False(t, resilience.IsTransient(err))
}
