package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-calendar/internal/metrics"
	"github.com/i474232898/weather-calendar/internal/weather"
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

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

const maxBodySize = 4 << 20

// response is what a single attempt hands back through the circuit breaker.
type response struct {
	status int
	body   []byte
}

// doRequestWithResilience executes the request with retries, exponential backoff and a
// circuit breaker. Rate limiting and 5xx responses are retried; other non-2xx responses
// fail immediately as *weather.SourceError.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	source, endpoint string,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var body []byte
	operation := func() error {
		req, err := buildRequest(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			defer resp.Body.Close()

			b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
			if readErr != nil {
				return nil, fmt.Errorf("read body: %w", readErr)
			}

			// Rate limiting and server errors count against the breaker.
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return nil, sourceError(source, resp.StatusCode, b)
			}
			return &response{status: resp.StatusCode, body: b}, nil
		})
		metrics.ProviderLatency.WithLabelValues(source, endpoint).Observe(time.Since(start).Seconds())

		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.ProviderCallsTotal.WithLabelValues(source, endpoint, "circuit_open").Inc()
				return backoff.Permanent(fmt.Errorf("%w: %v", errCircuitOpen, err))
			}
			var se *weather.SourceError
			if errors.As(err, &se) {
				metrics.ProviderCallsTotal.WithLabelValues(source, endpoint, strconv.Itoa(se.Status)).Inc()
			} else {
				metrics.ProviderCallsTotal.WithLabelValues(source, endpoint, "error").Inc()
			}
			return err
		}

		resp, ok := result.(*response)
		if !ok {
			return backoff.Permanent(fmt.Errorf("unexpected result type from circuit breaker"))
		}
		metrics.ProviderCallsTotal.WithLabelValues(source, endpoint, strconv.Itoa(resp.status)).Inc()
		if resp.status < 200 || resp.status >= 300 {
			return backoff.Permanent(sourceError(source, resp.status, resp.body))
		}

		body = resp.body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.Backoff.InitialInterval
	if cfg.Backoff.MaxInterval > 0 {
		bo.MaxInterval = cfg.Backoff.MaxInterval
	}
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(cfg.Backoff.MaxRetries)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// sourceError builds a SourceError, preferring the provider's own "message" field.
func sourceError(source string, status int, body []byte) *weather.SourceError {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	return &weather.SourceError{
		Source:  source,
		Status:  status,
		Message: payload.Message,
	}
}
