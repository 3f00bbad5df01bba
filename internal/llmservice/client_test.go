package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"document-chat/internal/errs"
)

// fakeModel returns queued errors first, then a fixed answer.
type fakeModel struct {
	calls     int
	errors    []error
	answer    string
	noChoices bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if len(f.errors) > 0 {
		err := f.errors[0]
		f.errors = f.errors[1:]
		return nil, err
	}
	if f.noChoices {
		return &llms.ContentResponse{}, nil
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.answer}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func newTestClient(model llms.Model) *Client {
	c := NewWithModel(model, "test-model")
	c.backoff = time.Millisecond
	return c
}

func messages() []llms.MessageContent {
	return []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, "hello")}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      errs.InferenceKind
		retryable bool
	}{
		{"auth status", errors.New("API returned unexpected status code: 401"), errs.InferenceAuthFailure, false},
		{"invalid key", errors.New("Incorrect API key provided"), errs.InferenceAuthFailure, false},
		{"rate limited", errors.New("API returned unexpected status code: 429"), errs.InferenceRateLimited, true},
		{"rate limit text", errors.New("rate limit exceeded, slow down"), errs.InferenceRateLimited, true},
		{"deadline", context.DeadlineExceeded, errs.InferenceTimeout, true},
		{"generic", errors.New("connection refused"), errs.InferenceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ie := Classify(tt.err)
			assert.Equal(t, tt.kind, ie.Kind)
			assert.Equal(t, tt.retryable, ie.Retryable)
		})
	}
}

func TestCompleteSuccess(t *testing.T) {
	model := &fakeModel{answer: "hi there"}
	client := newTestClient(model)

	answer, err := client.Complete(context.Background(), messages(), 0.1, 1000)
	require.NoError(t, err)
	assert.Equal(t, "hi there", answer)
	assert.Equal(t, 1, model.calls)
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	rateLimited := errors.New("API returned unexpected status code: 429")
	model := &fakeModel{errors: []error{rateLimited, rateLimited}, answer: "eventually"}
	client := newTestClient(model)

	answer, err := client.Complete(context.Background(), messages(), 0.1, 1000)
	require.NoError(t, err)
	assert.Equal(t, "eventually", answer)
	assert.Equal(t, 3, model.calls)
}

func TestCompleteExhaustsRetries(t *testing.T) {
	rateLimited := errors.New("API returned unexpected status code: 429")
	model := &fakeModel{errors: []error{rateLimited, rateLimited, rateLimited, rateLimited}}
	client := newTestClient(model)

	_, err := client.Complete(context.Background(), messages(), 0.1, 1000)
	require.Error(t, err)
	ie, ok := errs.AsInference(err)
	require.True(t, ok)
	assert.Equal(t, errs.InferenceRateLimited, ie.Kind)
	assert.Equal(t, maxAttempts, model.calls)
}

func TestCompleteNeverRetriesAuthFailure(t *testing.T) {
	model := &fakeModel{errors: []error{errors.New("API returned unexpected status code: 401")}}
	client := newTestClient(model)

	_, err := client.Complete(context.Background(), messages(), 0.1, 1000)
	require.Error(t, err)
	ie, ok := errs.AsInference(err)
	require.True(t, ok)
	assert.Equal(t, errs.InferenceAuthFailure, ie.Kind)
	assert.False(t, ie.Retryable)
	assert.Equal(t, 1, model.calls)
}

func TestCompleteEmptyResponse(t *testing.T) {
	model := &fakeModel{noChoices: true}
	client := newTestClient(model)

	_, err := client.Complete(context.Background(), messages(), 0.1, 1000)
	require.Error(t, err)
	ie, ok := errs.AsInference(err)
	require.True(t, ok)
	assert.Equal(t, errs.InferenceUnavailable, ie.Kind)
}
