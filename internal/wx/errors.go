package wx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrNotSupported is returned by a client for a capability it does not
// implement (e.g. the scraper has no forecast feed).
var ErrNotSupported = errors.New("operation not supported by provider")

// ConfigError indicates a setup problem common to every location using the
// client: a missing credential or missing registry metadata. It is fatal at
// construction and never retried.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// NetworkError wraps the last transient transport fault after the retry
// budget was exhausted.
type NetworkError struct {
	Provider string
	URL      string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error calling %s: %v", e.Provider, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ResponseError indicates an unexpected HTTP status or payload shape. The
// fault is not transient, so it is never retried.
type ResponseError struct {
	Provider   string
	StatusCode int
	Reason     string
	Excerpt    string
}

func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s: bad response", e.Provider)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Excerpt != "" {
		msg += ": " + e.Excerpt
	}
	return msg
}

// Retryable classifies an error for the retry driver. Transport-level faults
// (per-attempt timeouts, refused connections) are worth another attempt;
// response and configuration errors are deterministic and fail fast.
// A client timeout also matches context.DeadlineExceeded, so the transport
// classification runs first; the retry driver checks its own context to tell
// caller cancellation apart from an expired attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return false
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// Excerpt bounds a payload to a readable size for error messages.
func Excerpt(body []byte) string {
	const max = 500
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
