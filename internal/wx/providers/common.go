package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kalder/weather-staging/internal/wx"
)

// RetryConfig controls the linear backoff schedule: after attempt n the
// driver sleeps BaseDelay * n before attempt n+1.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetry matches the provider contract: three attempts with a
// 750ms base delay (0.75s, 1.5s between attempts).
var DefaultRetry = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   750 * time.Millisecond,
}

// HTTPClientConfig bundles the shared HTTP client with retry settings.
// The sleep hook exists so tests can observe the backoff schedule without
// waiting it out.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryConfig
	Sleep  func(ctx context.Context, d time.Duration) error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithRetry executes the request with linear backoff around
// transient transport faults and a circuit breaker per provider. Non-2xx
// responses are returned as *wx.ResponseError and never retried; exhausting
// the retry budget surfaces the last transport fault as *wx.NetworkError.
func doRequestWithRetry(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	provider string,
	buildRequest func() (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, &wx.ConfigError{Reason: provider + ": http client not configured"}
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 || retry.BaseDelay <= 0 {
		retry = DefaultRetry
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	var lastURL string

	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)
		lastURL = req.URL.String()

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return nil, readErr
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &wx.ResponseError{
					Provider:   provider,
					StatusCode: resp.StatusCode,
					Excerpt:    wx.Excerpt(body),
				}
			}
			return body, nil
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("%s: unexpected result type from circuit breaker", provider)
			}
			return body, nil
		}

		// An open circuit means the provider is already known to be down;
		// hammering it with the remaining attempts helps nobody.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &wx.NetworkError{Provider: provider, URL: lastURL, Err: err}
		}

		// A per-attempt client timeout and caller cancellation both surface
		// as deadline errors; the caller's own context is the tiebreaker.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !wx.Retryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == retry.MaxAttempts {
			break
		}
		if err := sleep(ctx, retry.BaseDelay*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, &wx.NetworkError{Provider: provider, URL: lastURL, Err: lastErr}
}
