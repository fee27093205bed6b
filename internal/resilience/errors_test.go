package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		status    int
		wantKind  string
		retryable bool
	}{
		{401, "auth", false},
		{403, "auth", false},
		{404, "not_found", false},
		{429, "rate_limit", true},
		{408, "timeout", true},
		{504, "timeout", true},
		{500, "connection", true},
		{503, "connection", true},
		{418, "plain", false},
	}

	for _, tt := range tests {
		err := FromStatusCode(tt.status, "call failed")
		if err == nil {
			t.Fatalf("FromStatusCode(%d) = nil", tt.status)
		}
		if got := IsRetryable(err); got != tt.retryable {
			t.Errorf("IsRetryable(status %d) = %v, want %v", tt.status, got, tt.retryable)
		}

		var (
			authErr *AuthError
			nfErr   *NotFoundError
			rlErr   *RateLimitError
			toErr   *TimeoutError
			connErr *ConnectionError
		)
		var ok bool
		switch tt.wantKind {
		case "auth":
			ok = errors.As(err, &authErr)
		case "not_found":
			ok = errors.As(err, &nfErr)
		case "rate_limit":
			ok = errors.As(err, &rlErr)
		case "timeout":
			ok = errors.As(err, &toErr)
		case "connection":
			ok = errors.As(err, &connErr)
		case "plain":
			ok = !errors.As(err, &authErr) && !errors.As(err, &nfErr) &&
				!errors.As(err, &rlErr) && !errors.As(err, &toErr) && !errors.As(err, &connErr)
		}
		if !ok {
			t.Errorf("FromStatusCode(%d) classified wrong: %v", tt.status, err)
		}
	}
}

func TestFromStatusCodeMessage(t *testing.T) {
	err := FromStatusCode(429, "paperless: get document 7")
	want := "paperless: get document 7: status 429"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestIsRetryableWrapped(t *testing.T) {
	inner := &RateLimitError{Err: fmt.Errorf("too many requests")}
	wrapped := eris.Wrap(inner, "llm: complete")
	if !IsRetryable(wrapped) {
		t.Error("wrapped rate limit should stay retryable")
	}
	if !IsRateLimit(wrapped) {
		t.Error("wrapped rate limit should stay a rate limit")
	}
}

func TestIsRetryableDeadline(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline exceeded should be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancellation should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestIsRetryableTransportHeuristics(t *testing.T) {
	err := fmt.Errorf("Get \"http://paperless\": read tcp: connection reset by peer")
	if !IsRetryable(err) {
		t.Error("connection reset message should be retryable")
	}
}

func TestIsRunFatal(t *testing.T) {
	auth := eris.Wrap(&AuthError{Err: fmt.Errorf("status 401")}, "paperless: list tags")
	if !IsRunFatal(auth) {
		t.Error("auth error should be run fatal")
	}
	if IsRunFatal(&ConnectionError{Err: fmt.Errorf("boom")}) {
		t.Error("connection error should not be run fatal")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("document %d content is empty", 9)
	if IsRetryable(err) {
		t.Error("validation errors are never retryable")
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Error("NewValidationError should produce a *ValidationError")
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(&TimeoutError{Err: fmt.Errorf("t")}); got != "transient" {
		t.Errorf("Classify(timeout) = %q", got)
	}
	if got := Classify(NewValidationError("bad")); got != "permanent" {
		t.Errorf("Classify(validation) = %q", got)
	}
}
