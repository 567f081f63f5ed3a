package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/mountain-conditions/internal/observability"
	"github.com/i474232898/mountain-conditions/internal/weather"
)

const (
	// DefaultMaxRetries is the number of attempts made by Fetch when the caller passes 0.
	DefaultMaxRetries = 3

	// DefaultBackoffUnit is multiplied by the attempt number between attempts.
	DefaultBackoffUnit = time.Second

	maxBodyBytes = 10 << 20
)

// BackoffConfig controls linear backoff behaviour.
type BackoffConfig struct {
	MaxRetries int
	Unit       time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// StatusError is a non-2xx, non-503 response. It is treated as a client or
// configuration problem and never retried.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.StatusCode, e.URL)
}

var (
	errServiceUnavailable = errors.New("service unavailable (503)")
	errNoHTTPClient       = errors.New("http client not configured")
)

// Fetcher performs GET requests with linear backoff retries behind a circuit
// breaker. Only transport failures and HTTP 503 are retried.
type Fetcher struct {
	name    string
	cfg     HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewFetcher creates a Fetcher for one provider.
func NewFetcher(name string, cfg HTTPClientConfig, metrics *observability.Metrics) *Fetcher {
	if cfg.Backoff.MaxRetries <= 0 {
		cfg.Backoff.MaxRetries = DefaultMaxRetries
	}
	if cfg.Backoff.Unit <= 0 {
		cfg.Backoff.Unit = DefaultBackoffUnit
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A 4xx is our fault, not the provider's; don't trip on it.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se)
		},
	})

	return &Fetcher{
		name:    name,
		cfg:     cfg,
		circuit: cb,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
	}
}

// WithClock swaps the clock used for backoff sleeps.
func (f *Fetcher) WithClock(c clockwork.Clock) *Fetcher {
	f.clock = c
	return f
}

// Fetch GETs url and returns the response body. maxRetries is the total number
// of attempts (0 means the configured default). The wait before attempt n+1 is
// Unit*n and is cut short by ctx. Exhausted retries, an open circuit or a
// cancelled ctx yield weather.ErrSourceUnavailable; other non-2xx statuses
// return a *StatusError immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string, maxRetries int) ([]byte, error) {
	if f.cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if maxRetries <= 0 {
		maxRetries = f.cfg.Backoff.MaxRetries
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", weather.ErrSourceUnavailable, f.name, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		result, err := f.circuit.Execute(func() (interface{}, error) {
			return f.do(req)
		})
		if err == nil {
			f.metrics.FetchAttempts.WithLabelValues(f.name, "ok").Inc()
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			f.metrics.FetchAttempts.WithLabelValues(f.name, "unavailable").Inc()
			return nil, fmt.Errorf("%w: %s: %w", weather.ErrSourceUnavailable, f.name, err)
		}

		var se *StatusError
		if errors.As(err, &se) {
			f.metrics.FetchAttempts.WithLabelValues(f.name, "status").Inc()
			return nil, err
		}

		lastErr = err
		if attempt >= maxRetries {
			f.metrics.FetchAttempts.WithLabelValues(f.name, "unavailable").Inc()
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", weather.ErrSourceUnavailable, f.name, attempt, lastErr)
		}
		f.metrics.FetchAttempts.WithLabelValues(f.name, "retry").Inc()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", weather.ErrSourceUnavailable, f.name, ctx.Err())
		case <-f.clock.After(f.cfg.Backoff.Unit * time.Duration(attempt)):
			// continue to next attempt
		}
	}
}

func (f *Fetcher) do(req *http.Request) ([]byte, error) {
	resp, err := f.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, errServiceUnavailable
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// decodeJSON unmarshals a provider payload, mapping failures to ErrMalformedSourceData.
func decodeJSON(provider string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s: %v", weather.ErrMalformedSourceData, provider, err)
	}
	return nil
}

// malformed builds an ErrMalformedSourceData error for a missing required field.
func malformed(provider, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", weather.ErrMalformedSourceData, provider, fmt.Sprintf(format, args...))
}
