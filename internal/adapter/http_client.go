package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/defi-health-scanner/internal/circuitbreaker"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/metrics"
)

// ErrNoData means the upstream answered but has nothing for the request.
// It is distinct from an UpstreamError, which means the upstream itself failed.
var ErrNoData = errors.New("no data available")

// UpstreamError is a failed call to a third-party service
type UpstreamError struct {
	Service    string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s request failed: %v", e.Service, e.Cause)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// CreditWaiter blocks until an upstream's shared credit budget admits one more call
type CreditWaiter interface {
	Wait(ctx context.Context) error
}

// ClientOptions holds options for creating an HTTPClient
type ClientOptions struct {
	Service        string
	Timeout        time.Duration
	RequestsPerSec int
	MaxElapsedTime time.Duration
	Breaker        *circuitbreaker.CircuitBreaker
	// Budget is optional; every attempt, retries included, spends credits.
	Budget CreditWaiter
}

// HTTPClient is a rate limited JSON client shared by the upstream adapters.
// Read calls retry with exponential backoff; Once calls never retry.
type HTTPClient struct {
	service    string
	client     *http.Client
	limiter    *rate.Limiter
	maxElapsed time.Duration
	breaker    *circuitbreaker.CircuitBreaker
	budget     CreditWaiter
}

// NewHTTPClient creates a new HTTP client with rate limiting
func NewHTTPClient(opts ClientOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}
	if opts.MaxElapsedTime == 0 {
		opts.MaxElapsedTime = 30 * time.Second
	}

	return &HTTPClient{
		service:    opts.Service,
		client:     &http.Client{Timeout: opts.Timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		maxElapsed: opts.MaxElapsedTime,
		breaker:    opts.Breaker,
		budget:     opts.Budget,
	}
}

// GetJSON issues a GET and decodes the body into out, retrying transient failures
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, url, headers, nil, true)
	if err != nil {
		return err
	}
	return c.decode(body, out)
}

// PostJSON issues a POST with a JSON body, retrying transient failures
func (c *HTTPClient) PostJSON(ctx context.Context, url string, payload, out interface{}) error {
	return c.post(ctx, url, payload, out, true)
}

// PostJSONOnce issues a single POST attempt. Used for calls with side effects.
func (c *HTTPClient) PostJSONOnce(ctx context.Context, url string, payload, out interface{}) error {
	return c.post(ctx, url, payload, out, false)
}

func (c *HTTPClient) post(ctx context.Context, url string, payload, out interface{}, retry bool) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode %s request: %w", c.service, err)
		}
	}
	body, err := c.do(ctx, http.MethodPost, url, map[string]string{"Content-Type": "application/json"}, data, retry)
	if err != nil {
		return err
	}
	return c.decode(body, out)
}

func (c *HTTPClient) decode(body []byte, out interface{}) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &UpstreamError{Service: c.service, StatusCode: http.StatusOK, Cause: fmt.Errorf("malformed payload: %w", err)}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, headers map[string]string, payload []byte, retry bool) ([]byte, error) {
	var body []byte
	attempt := 0

	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		if c.budget != nil {
			if err := c.budget.Wait(ctx); err != nil {
				metrics.UpstreamRequests.WithLabelValues(c.service, "budget_exhausted").Inc()
				return backoff.Permanent(&UpstreamError{Service: c.service, Cause: err})
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		if c.breaker != nil {
			if err := c.breaker.Allow(); err != nil {
				metrics.UpstreamRequests.WithLabelValues(c.service, "circuit_open").Inc()
				return backoff.Permanent(&UpstreamError{Service: c.service, Cause: err})
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			c.record(true)
			metrics.UpstreamRequests.WithLabelValues(c.service, "error").Inc()
			return &UpstreamError{Service: c.service, Cause: err}
		}
		defer resp.Body.Close()
		c.record(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500)

		metrics.UpstreamRequests.WithLabelValues(c.service, strconv.Itoa(resp.StatusCode)).Inc()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Cause: err}
		}

		if resp.StatusCode != http.StatusOK {
			upErr := &UpstreamError{Service: c.service, StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return upErr
			}
			return backoff.Permanent(upErr)
		}

		body = data
		return nil
	}

	if !retry {
		err := operation()
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return nil, permanent.Err
		}
		return body, err
	}

	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxElapsed
	notify := func(err error, wait time.Duration) {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"service": c.service,
			"attempt": attempt,
			"wait":    wait.String(),
		}).WithError(err).Warn("upstream request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(strategy, ctx), notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) record(failed bool) {
	if c.breaker != nil {
		c.breaker.Record(failed)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
