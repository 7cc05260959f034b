package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// DefaultBackoff is used by the provider constructors.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// maxBodyBytes bounds how much of any upstream body is read.
const maxBodyBytes = 1 << 20

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// upstreamResponse is a fully read response. Bodies are read inside the
// breaker so the connection is released before any retry.
type upstreamResponse struct {
	StatusCode int
	Status     string
	Body       []byte
}

// statusError carries the last retryable answer once retries are exhausted.
type statusError struct {
	kind error
	resp upstreamResponse
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.kind, e.resp.StatusCode)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff, and a circuit breaker. Only transport failures, 429 and 5xx answers
// are retried and counted against the breaker; any other status is returned
// to the caller with its body so provider error envelopes can be inspected.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (upstreamResponse, error) {
	if cfg.Client == nil {
		return upstreamResponse{}, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return upstreamResponse{}, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return upstreamResponse{}, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return upstreamResponse{}, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if readErr != nil {
				return nil, readErr
			}
			out := upstreamResponse{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, &statusError{kind: errRateLimited, resp: out}
			}
			if resp.StatusCode >= 500 {
				return nil, &statusError{kind: errServerError, resp: out}
			}
			return out, nil
		})

		if err == nil {
			resp, ok := result.(upstreamResponse)
			if !ok {
				return upstreamResponse{}, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return upstreamResponse{}, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return upstreamResponse{}, lastErr
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return upstreamResponse{}, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}
