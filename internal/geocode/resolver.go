// Package geocode turns coordinates into human-readable place names.
package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wildfire-risk-aggregation/internal/cache"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
)

// UnknownLocation is returned whenever no name could be resolved.
const UnknownLocation = "Unknown Location"

const (
	NameTTL        = 3600 * time.Second
	AttemptTimeout = 15 * time.Second
)

// errEmptyName marks a successful lookup that carried no usable name.
var errEmptyName = errors.New("empty place name")

// Provider performs a single reverse-geocoding attempt.
type Provider interface {
	Name() string
	Reverse(ctx context.Context, coord geo.Coordinate) (string, error)
}

// DefaultRetryPolicy retries timeouts and resets twice, waiting 0s then 1s.
func DefaultRetryPolicy() upstream.RetryPolicy {
	return upstream.RetryPolicy{
		MaxRetries:      2,
		InitialInterval: time.Second,
		Linear:          true,
		Retryable:       upstream.IsTimeoutOrReset,
	}
}

// Resolver caches names and hides every provider failure behind
// UnknownLocation.
type Resolver struct {
	provider Provider
	cache    cache.Store
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	policy         upstream.RetryPolicy
	attemptTimeout time.Duration
}

func NewResolver(provider Provider, store cache.Store, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		provider:       provider,
		cache:          store,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
		policy:         DefaultRetryPolicy(),
		attemptTimeout: AttemptTimeout,
	}
}

// Resolve returns the place name for coord, or UnknownLocation. It never
// fails.
func (r *Resolver) Resolve(ctx context.Context, coord geo.Coordinate) string {
	key := cache.Key{Kind: cache.KindLocation, Coord: coord}
	if v, ok := r.cache.Get(key); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}

	var name string
	attempt := 0
	err := upstream.Retry(ctx, r.clock, r.policy, func(ctx context.Context) error {
		if attempt > 0 {
			r.observe("retry")
			r.logger.Info("retrying location lookup",
				"coord", coord.Key(), "attempts_remaining", r.policy.MaxRetries-attempt+1)
		}
		attempt++

		attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()

		n, err := r.provider.Reverse(attemptCtx, coord)
		if err != nil {
			return err
		}
		if n == "" {
			return errEmptyName
		}
		name = n
		return nil
	})

	switch {
	case err == nil:
		r.observe("success")
		r.cache.Set(key, name, NameTTL)
		r.logger.Info("resolved location name", "coord", coord.Key(), "name", name)
		return name
	case errors.Is(err, errEmptyName):
		// Not cached so a later request can try again.
		r.observe("empty")
		return UnknownLocation
	default:
		r.observe("failure")
		r.logger.Error("location lookup failed",
			"coord", coord.Key(), "provider", r.provider.Name(), "error", err)
		return UnknownLocation
	}
}

func (r *Resolver) observe(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.GeocodeAttempts.WithLabelValues(outcome).Inc()
}
