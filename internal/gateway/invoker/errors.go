package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TransientError marks a provider failure worth retrying (rate limits,
// timeouts, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient provider error: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// NonRetryableError marks a provider failure that will never succeed on
// retry (malformed request, auth failure, unknown model on the provider
// side).
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable provider error: %v", e.Err)
}
func (e *NonRetryableError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error { return &TransientError{Err: err} }

// NonRetryable wraps err as not retryable.
func NonRetryable(err error) error { return &NonRetryableError{Err: err} }

// IsRetryable reports whether an attempt failure should be retried on the
// same model. Explicitly classified errors are trusted; anything else
// falls back to a string heuristic over common provider failure shapes.
func IsRetryable(err error) bool {
	var nr *NonRetryableError
	if errors.As(err, &nr) {
		return false
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "status 5")
}
