package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalder/weather-staging/internal/wx"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func recordingSleeps(sleeps *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
}

func buildReq() (*http.Request, error) {
	return http.NewRequest(http.MethodGet, "http://upstream.test/data", nil)
}

// attemptTimeout mimics the fault the HTTP client raises when its per-request
// Timeout fires: a timeout net.Error that also matches
// context.DeadlineExceeded (Go 1.16+).
type attemptTimeout struct{}

func (attemptTimeout) Error() string        { return "timeout awaiting response headers" }
func (attemptTimeout) Timeout() bool        { return true }
func (attemptTimeout) Temporary() bool      { return true }
func (attemptTimeout) Is(target error) bool { return target == context.DeadlineExceeded }

// Two transient faults then success: the call succeeds and the backoff
// schedule increases linearly between attempts.
func TestRetryTransientThenSuccess(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, syscall.ECONNREFUSED
		}
		return textResponse(http.StatusOK, `{"ok":true}`), nil
	})}

	var sleeps []time.Duration
	cfg := HTTPClientConfig{Client: client, Sleep: recordingSleeps(&sleeps)}

	body, err := doRequestWithRetry(context.Background(), cfg, newBreaker("test"), "test", buildReq)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond}, sleeps)
}

// A per-attempt client timeout is transient: it is retried on the same
// schedule as a refused connection, not mistaken for caller cancellation.
func TestRetryAttemptTimeoutThenSuccess(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, attemptTimeout{}
		}
		return textResponse(http.StatusOK, `{"ok":true}`), nil
	})}

	var sleeps []time.Duration
	cfg := HTTPClientConfig{Client: client, Sleep: recordingSleeps(&sleeps)}

	body, err := doRequestWithRetry(context.Background(), cfg, newBreaker("test"), "test", buildReq)
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, 3, attempts)
	require.Equal(t, []time.Duration{750 * time.Millisecond, 1500 * time.Millisecond}, sleeps)
}

// Timing out on every attempt exhausts the budget and surfaces as a network
// error that preserves the deadline cause.
func TestRetryAttemptTimeoutBudgetExhausted(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return nil, attemptTimeout{}
	})}

	var sleeps []time.Duration
	cfg := HTTPClientConfig{Client: client, Sleep: recordingSleeps(&sleeps)}

	_, err := doRequestWithRetry(context.Background(), cfg, newBreaker("test"), "test", buildReq)

	var netErr *wx.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 3, attempts)
	require.Len(t, sleeps, 2)
}

// A non-2xx status is a response error, surfaced immediately with the status
// code and a bounded payload excerpt, never retried.
func TestRetryNonTransientFailsFast(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return textResponse(http.StatusForbidden, "quota exceeded"), nil
	})}

	var sleeps []time.Duration
	cfg := HTTPClientConfig{Client: client, Sleep: recordingSleeps(&sleeps)}

	_, err := doRequestWithRetry(context.Background(), cfg, newBreaker("test"), "test", buildReq)

	var respErr *wx.ResponseError
	require.ErrorAs(t, err, &respErr)
	require.Equal(t, http.StatusForbidden, respErr.StatusCode)
	require.Contains(t, respErr.Excerpt, "quota exceeded")
	require.Equal(t, 1, attempts)
	require.Empty(t, sleeps)
}

// Exhausting the retry budget surfaces a network error wrapping the last
// transport fault.
func TestRetryBudgetExhausted(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return nil, syscall.ECONNREFUSED
	})}

	var sleeps []time.Duration
	cfg := HTTPClientConfig{Client: client, Sleep: recordingSleeps(&sleeps)}

	_, err := doRequestWithRetry(context.Background(), cfg, newBreaker("test"), "test", buildReq)

	var netErr *wx.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.ErrorIs(t, err, syscall.ECONNREFUSED)
	require.Equal(t, 3, attempts)
	require.Len(t, sleeps, 2)
}

// Cancellation during backoff stops the retry loop without another attempt.
func TestRetryHonorsCancellation(t *testing.T) {
	attempts := 0
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		attempts++
		return nil, syscall.ECONNREFUSED
	})}

	ctx, cancel := context.WithCancel(context.Background())
	cfg := HTTPClientConfig{Client: client, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	_, err := doRequestWithRetry(ctx, cfg, newBreaker("test"), "test", buildReq)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
}

func TestResponseCacheTTL(t *testing.T) {
	cache := newResponseCache(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	_, ok := cache.get("k")
	require.False(t, ok)

	cache.put("k", []byte("v"))
	body, ok := cache.get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), body)

	now = now.Add(2 * time.Minute)
	_, ok = cache.get("k")
	require.False(t, ok)
}

func TestRetryableClassification(t *testing.T) {
	require.True(t, wx.Retryable(syscall.ECONNRESET))
	require.True(t, wx.Retryable(&url.Error{Op: "Get", URL: "http://x", Err: attemptTimeout{}}))
	require.False(t, wx.Retryable(&wx.ResponseError{Provider: "x", StatusCode: 503}))
	require.False(t, wx.Retryable(&wx.ConfigError{Reason: "missing key"}))
	require.False(t, wx.Retryable(errors.New("parse failure")))
	require.False(t, wx.Retryable(context.Canceled))
	require.False(t, wx.Retryable(context.DeadlineExceeded))
}
