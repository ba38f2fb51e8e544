package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
)

func TestKeyString(t *testing.T) {
	c := geo.MustNew(41.42, -122.09)

	assert.Equal(t, "index:41.420000,-122.090000", Key{Kind: KindIndex, Coord: c}.String())
	assert.Equal(t, "historical_weather:41.420000,-122.090000@2023-06-01",
		Key{Kind: KindHistoricalWeather, Coord: c, Date: "2023-06-01"}.String())
}

func TestMemory_TTLRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock, nil)
	key := Key{Kind: KindWeather, Coord: geo.MustNew(10, 20)}

	m.Set(key, "sunny", 10*time.Second)

	clock.Advance(9 * time.Second)
	v, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "sunny", v)

	clock.Advance(time.Second)
	_, ok = m.Get(key)
	assert.False(t, ok, "entry must be absent once expiresAt is reached")
}

func TestMemory_DefaultTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock, nil)
	key := Key{Kind: KindIndex, Coord: geo.MustNew(0, 0)}

	m.Set(key, 0.5, 0)

	clock.Advance(DefaultTTL - time.Millisecond)
	_, ok := m.Get(key)
	assert.True(t, ok)

	clock.Advance(time.Millisecond)
	_, ok = m.Get(key)
	assert.False(t, ok)
}

func TestMemory_LastWriteWins(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock(), nil)
	key := Key{Kind: KindLocation, Coord: geo.MustNew(1, 1)}

	m.Set(key, "first", time.Minute)
	m.Set(key, "second", time.Minute)

	v, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestMemory_Sweep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := NewMemory(clock, nil)

	m.Set(Key{Kind: KindIndex, Coord: geo.MustNew(1, 1)}, 1, time.Second)
	m.Set(Key{Kind: KindIndex, Coord: geo.MustNew(2, 2)}, 2, time.Hour)
	require.Equal(t, 2, m.Len())

	clock.Advance(time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemory_RecordsLookups(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	m := NewMemory(clockwork.NewFakeClock(), metrics)
	key := Key{Kind: KindLocation, Coord: geo.MustNew(3, 3)}

	m.Get(key)
	m.Set(key, "x", time.Minute)
	m.Get(key)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("location", "miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("location", "hit")), 0)
}

func TestFetch(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock(), nil)
	key := Key{Kind: KindIndex, Coord: geo.MustNew(5, 5)}
	calls := 0
	load := func(context.Context) (float64, error) {
		calls++
		return 0.42, nil
	}

	v, err := Fetch(context.Background(), m, key, time.Minute, load)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, v, 1e-9)

	v, err = Fetch(context.Background(), m, key, time.Minute, load)
	require.NoError(t, err)
	assert.InDelta(t, 0.42, v, 1e-9)
	assert.Equal(t, 1, calls)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	m := NewMemory(clockwork.NewFakeClock(), nil)
	key := Key{Kind: KindWeather, Coord: geo.MustNew(6, 6)}
	boom := errors.New("boom")

	_, err := Fetch(context.Background(), m, key, time.Minute, func(context.Context) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}
