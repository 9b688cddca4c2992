package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError wraps an error that is safe to retry (5xx, network blips).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError signals that the provider asked us to slow down. The
// product is retried after a backoff; the batch continues.
type RateLimitError struct {
	Err error
	// RetryAfter is the provider's hint, zero when absent.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return "rate limited: " + e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// AuthError signals rejected credentials. It halts the batch.
type AuthError struct {
	Err        error
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// TimeoutError signals that an external call exceeded its own deadline. It
// halts the batch.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string { return "call timed out: " + e.Err.Error() }
func (e *TimeoutError) Unwrap() error { return e.Err }

// FromStatus maps an HTTP status code onto the error classes. Codes without
// a class return err unchanged.
func FromStatus(statusCode int, err error) error {
	if err == nil {
		err = fmt.Errorf("status %d", statusCode)
	}
	switch {
	case statusCode == 429:
		return &RateLimitError{Err: err}
	case statusCode == 401 || statusCode == 403:
		return &AuthError{Err: err, StatusCode: statusCode}
	case IsTransientHTTPStatus(statusCode):
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}

// FromContext converts a deadline expiry into a TimeoutError. Other errors,
// including plain cancellation, pass through.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Err: err}
	}
	return err
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsFatal reports whether err must halt the remaining batch.
func IsFatal(err error) bool {
	var ae *AuthError
	var te *TimeoutError
	return errors.As(err, &ae) || errors.As(err, &te)
}

// IsRetryable reports whether the same call may succeed if repeated.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	return IsRateLimited(err) || IsTransient(err)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
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

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus returns true for server-side statuses worth retrying.
// 429 is handled separately as a rate limit.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// retryAfter extracts the provider's backoff hint from err.
func retryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
