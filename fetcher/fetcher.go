// Package fetcher issues HTTP requests to chain-data providers under a fixed
// calls-per-second budget shared by every concurrent caller of one run.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	DefaultCallsPerSecond = 5
	DefaultMaxAttempts    = 4

	baseBackoff = 700 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// ResponseCheck lets callers classify provider-level failures that hide
// behind an HTTP 200, e.g. etherscan's {"status":"0","message":"NOTOK ..."}
// rate limit responses. Return a *TransientError to trigger a retry, any
// other error to fail the request, nil to accept the body.
type ResponseCheck func(body []byte) error

type Client struct {
	httpClient  *http.Client
	limiter     ratelimit.Limiter
	maxAttempts int
	logger      *zap.Logger
}

func NewClient(callsPerSecond int, maxAttempts int, logger *zap.Logger) *Client {
	if callsPerSecond <= 0 {
		callsPerSecond = DefaultCallsPerSecond
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		limiter:     ratelimit.New(callsPerSecond),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// backoffDelay is a pure function of the attempt number (0-based): an
// exponential base delay capped at maxBackoff, plus up to 30% jitter.
func backoffDelay(attempt int, jitter float64) time.Duration {
	d := baseBackoff << uint(attempt)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	return d + time.Duration(jitter*0.3*float64(d))
}

// Get performs one logical GET request. Transient failures are retried with
// backoff until the attempt budget runs out, then surfaced as *ExhaustedError.
// Permanent failures are returned immediately.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values, check ResponseCheck) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if attempt > 0 {
			delay := backoffDelay(attempt-1, rand.Float64())
			c.logger.Debug("retrying request",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		c.limiter.Take()

		body, err := c.doOnce(ctx, endpoint, query, check)
		if err == nil {
			return body, nil
		}

		var te *TransientError
		if errors.As(err, &te) {
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, &ExhaustedError{Attempts: c.maxAttempts, Last: lastErr}
}

func (c *Client) doOnce(ctx context.Context, endpoint string, query url.Values, check ResponseCheck) ([]byte, error) {
	u := endpoint
	if len(query) > 0 {
		u = fmt.Sprintf("%s?%s", endpoint, query.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, Permanent(0, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Transient(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(fmt.Errorf("http %d from %s", resp.StatusCode, endpoint))
	default:
		return nil, Permanent(resp.StatusCode, fmt.Errorf("http %d from %s", resp.StatusCode, endpoint))
	}

	if check != nil {
		if err := check(body); err != nil {
			return nil, err
		}
	}
	return body, nil
}
