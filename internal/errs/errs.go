package errs

import (
	"errors"
	"fmt"
)

// Ingestion and retrieval failure classes. Ingestion is all-or-nothing:
// any of these leaves the previously active index untouched.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrParseFailure     = errors.New("document parse failure")
	ErrEmbeddingFailure = errors.New("embedding failure")
	ErrIndexCorrupt     = errors.New("vector index unreadable")
)

// InferenceKind classifies a failed chat-completion call.
type InferenceKind string

const (
	InferenceAuthFailure InferenceKind = "auth_failure"
	InferenceRateLimited InferenceKind = "rate_limited"
	InferenceTimeout     InferenceKind = "timeout"
	InferenceUnavailable InferenceKind = "unavailable"
)

// InferenceError wraps a failure from the inference gateway. Retryable
// marks kinds that a bounded retry may resolve; auth failures never are.
type InferenceError struct {
	Kind      InferenceKind
	Retryable bool
	Err       error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference %s: %v", e.Kind, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// AsInference returns the InferenceError wrapped in err, if any.
func AsInference(err error) (*InferenceError, bool) {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// ConfigError reports an invalid or missing configuration value. A missing
// credential is fatal at startup: the process must not serve requests.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}
