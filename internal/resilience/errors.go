package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ConnectionError wraps a transport-level failure that is safe to retry.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// RateLimitError indicates the upstream service returned 429. Retryable
// with a longer backoff than ordinary transient failures.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// TimeoutError indicates an operation exceeded its deadline. Retryable up
// to the per-document budget.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return e.Err.Error() }
func (e *TimeoutError) Unwrap() error { return e.Err }

// AuthError indicates failed authentication. Fatal for the entire run.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError indicates the entity vanished mid-run. Fatal for the
// affected document only.
type NotFoundError struct {
	Err error
}

func (e *NotFoundError) Error() string { return e.Err.Error() }
func (e *NotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates malformed LLM output or missing required
// fields. Fatal for the affected document, never retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Err: fmt.Errorf(format, args...)}
}

// FromStatusCode maps an HTTP status to the error taxonomy. The msg should
// carry enough context to identify the failing call.
func FromStatusCode(statusCode int, msg string) error {
	err := fmt.Errorf("%s: status %d", msg, statusCode)
	switch {
	case statusCode == 401 || statusCode == 403:
		return &AuthError{Err: err}
	case statusCode == 404:
		return &NotFoundError{Err: err}
	case statusCode == 429:
		return &RateLimitError{Err: err}
	case statusCode == 408 || statusCode == 504:
		return &TimeoutError{Err: err}
	case statusCode >= 500:
		return &ConnectionError{Err: err}
	default:
		return err
	}
}

// IsRetryable returns true if the error (or any error in its chain) is
// safe to retry: rate limits, timeouts, and transport-level failures.
// Authentication, validation, and not-found errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var (
		connErr *ConnectionError
		rateErr *RateLimitError
		toErr   *TimeoutError
	)
	if errors.As(err, &connErr) || errors.As(err, &rateErr) || errors.As(err, &toErr) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsRateLimit returns true if the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}

// IsRunFatal returns true for errors that must abort the whole batch
// rather than just the current document.
func IsRunFatal(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Classify categorizes an error as "transient" or "permanent".
func Classify(err error) string {
	if IsRetryable(err) {
		return "transient"
	}
	return "permanent"
}
