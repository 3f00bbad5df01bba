package llmservice

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"document-chat/internal/config"
	"document-chat/internal/errs"
)

const maxAttempts = 3

// Client calls the chat-completion endpoint. The underlying model is
// injectable so tests can substitute a deterministic fake.
type Client struct {
	model   llms.Model
	modelID string
	backoff time.Duration
}

func New(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &Client{model: llm, modelID: cfg.Model, backoff: 500 * time.Millisecond}, nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(model llms.Model, modelID string) *Client {
	return &Client{model: model, modelID: modelID, backoff: 500 * time.Millisecond}
}

// Complete sends the message sequence and returns the completion text.
// RateLimited and Timeout failures are retried with doubling backoff up
// to maxAttempts; auth failures are never retried.
func (c *Client) Complete(ctx context.Context, messages []llms.MessageContent, temperature float64, maxTokens int) (string, error) {
	var lastErr *errs.InferenceError
	backoff := c.backoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.model.GenerateContent(ctx, messages,
			llms.WithModel(c.modelID),
			llms.WithTemperature(temperature),
			llms.WithMaxTokens(maxTokens),
		)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", &errs.InferenceError{Kind: errs.InferenceUnavailable, Err: errors.New("empty completion response")}
			}
			return resp.Choices[0].Content, nil
		}

		lastErr = Classify(err)
		if !lastErr.Retryable || attempt == maxAttempts {
			return "", lastErr
		}

		log.Warn().Err(err).Str("kind", string(lastErr.Kind)).Int("attempt", attempt).Msg("inference call failed, retrying")
		select {
		case <-ctx.Done():
			return "", &errs.InferenceError{Kind: errs.InferenceTimeout, Retryable: true, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", lastErr
}

// Classify maps a transport failure onto the inference error taxonomy.
func Classify(err error) *errs.InferenceError {
	var ie *errs.InferenceError
	if errors.As(err, &ie) {
		return ie
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err) || strings.Contains(msg, "timeout"):
		return &errs.InferenceError{Kind: errs.InferenceTimeout, Retryable: true, Err: err}
	case strings.Contains(msg, "status code: 401") || strings.Contains(msg, "status code: 403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "incorrect api key"):
		return &errs.InferenceError{Kind: errs.InferenceAuthFailure, Err: err}
	case strings.Contains(msg, "status code: 429") || strings.Contains(msg, "rate limit"):
		return &errs.InferenceError{Kind: errs.InferenceRateLimited, Retryable: true, Err: err}
	default:
		return &errs.InferenceError{Kind: errs.InferenceUnavailable, Err: err}
	}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
