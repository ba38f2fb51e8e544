package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
)

// DefaultTTL applies when Set is called with a non-positive ttl.
const DefaultTTL = 300 * time.Second

// Kind namespaces cached values so different data for one coordinate never
// collide.
type Kind string

const (
	KindIndex             Kind = "index"
	KindWeather           Kind = "weather"
	KindHistoricalWeather Kind = "historical_weather"
	KindLocation          Kind = "location"
)

// Key identifies a cache entry. Date is only set for date-scoped data such as
// historical weather.
type Key struct {
	Kind  Kind
	Coord geo.Coordinate
	Date  string
}

// String returns the canonical form "kind:lat,lng[@date]".
func (k Key) String() string {
	if k.Date == "" {
		return fmt.Sprintf("%s:%s", k.Kind, k.Coord.Key())
	}
	return fmt.Sprintf("%s:%s@%s", k.Kind, k.Coord.Key(), k.Date)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is a concurrency-safe in-memory TTL cache. Expired entries are
// treated as absent on read and reclaimed by Sweep.
type Memory struct {
	mu sync.RWMutex

	// key: Key.String()
	data map[string]entry

	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewMemory creates an empty cache. A nil clock uses the real clock.
func NewMemory(clock clockwork.Clock, metrics *observability.Metrics) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{
		data:    make(map[string]entry),
		clock:   clock,
		metrics: metrics,
	}
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(key Key) (any, bool) {
	now := m.clock.Now()

	m.mu.RLock()
	e, ok := m.data[key.String()]
	m.mu.RUnlock()

	if !ok || !now.Before(e.expiresAt) {
		m.observe(key.Kind, "miss")
		return nil, false
	}
	m.observe(key.Kind, "hit")
	return e.value, true
}

// Set stores value under key. Last write wins.
func (m *Memory) Set(key Key, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	expiresAt := m.clock.Now().Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key.String()] = entry{value: value, expiresAt: expiresAt}
}

// Sweep removes expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.data {
		if !now.Before(e.expiresAt) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *Memory) observe(kind Kind, result string) {
	if m.metrics == nil {
		return
	}
	m.metrics.CacheLookups.WithLabelValues(string(kind), result).Inc()
}

// Store is the subset of Memory used by components that cache results.
type Store interface {
	Get(key Key) (any, bool)
	Set(key Key, value any, ttl time.Duration)
}

// Fetch returns the cached value for key or calls load and caches its result.
// Errors are never cached. Concurrent misses for the same key may both call
// load.
func Fetch[T any](ctx context.Context, s Store, key Key, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if v, ok := s.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.Set(key, v, ttl)
	return v, nil
}
