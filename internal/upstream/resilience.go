// Package upstream holds the shared resilience helper used by every outbound
// HTTP client: per-attempt timeouts, bounded retries and a circuit breaker.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// RetryPolicy controls how failed attempts are retried.
//
// Delays are exponential (InitialInterval * 2^attempt) unless Linear is set, in
// which case the delay after the n-th failed attempt (0-based) is
// n * InitialInterval. MaxInterval caps either form when positive. A nil
// Retryable retries every error except an open circuit.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Linear          bool
	Retryable       func(error) bool
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryPolicy

	// Timeout bounds a single attempt, including reading the body.
	Timeout time.Duration

	Clock clockwork.Clock
}

var (
	ErrRateLimited       = errors.New("rate limited")
	ErrServerError       = errors.New("server error")
	ErrUnexpectedStatus  = errors.New("unexpected status code")
	ErrCircuitOpen       = errors.New("circuit breaker open")
	ErrMalformedResponse = errors.New("malformed response")

	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid retry configuration")
)

// StatusError reports a non-2xx response. It unwraps to ErrRateLimited,
// ErrServerError or ErrUnexpectedStatus.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %d", e.Unwrap(), e.Code)
	}
	return fmt.Sprintf("%v: %d: %s", e.Unwrap(), e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.Code >= 500:
		return ErrServerError
	default:
		return ErrUnexpectedStatus
	}
}

// NewBreaker returns a circuit breaker with the settings shared by all
// upstream clients.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// Retry calls fn until it succeeds, the policy gives up or ctx is done.
// The last error is returned unchanged.
func Retry(ctx context.Context, clock clockwork.Clock, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.MaxRetries < 0 || policy.InitialInterval < 0 {
		return errInvalidConfig
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || attempt >= policy.MaxRetries {
			return err
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}

		delay := backoffDelay(policy, attempt)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(delay):
		}
	}
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	var delay time.Duration
	if policy.Linear {
		delay = policy.InitialInterval * time.Duration(attempt)
	} else {
		delay = policy.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
	}
	if policy.MaxInterval > 0 && delay > policy.MaxInterval {
		delay = policy.MaxInterval
	}
	return delay
}

// Do executes the request built by buildRequest through the circuit breaker,
// retrying per cfg.Retry. Each attempt gets its own cfg.Timeout deadline; on
// success the deadline stays armed until the caller closes the body.
func Do(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(context.Context) (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}

	var resp *http.Response
	err := Retry(ctx, cfg.Clock, cfg.Retry, func(ctx context.Context) error {
		r, err := attempt(ctx, cfg, cb, buildRequest)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func attempt(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(context.Context) (*http.Request, error),
) (*http.Response, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
	}

	req, err := buildRequest(attemptCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	})
	if err != nil {
		cancel()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		cancel()
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
