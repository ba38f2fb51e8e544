package imagery

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-aggregation/internal/cache"
	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
)

var site = geo.MustNew(41.42, -122.09)

func newCalculator(eng Engine) (*Calculator, *cache.Memory) {
	store := cache.NewMemory(clockwork.NewFakeClock(), nil)
	return NewCalculator(eng, store, observability.NopLogger()), store
}

func TestCurrentIndex(t *testing.T) {
	eng := newFakeEngine()
	captured := time.Date(2023, 5, 9, 0, 0, 0, 0, time.UTC)
	eng.scenes[CurrentCollection] = []engine.Scene{{ID: "MOD13A1/2023_05_09", CapturedAt: captured}}
	eng.values["MOD13A1/2023_05_09"] = ptr(0.1)

	calc, _ := newCalculator(eng)
	res, err := calc.CurrentIndex(context.Background(), site)
	require.NoError(t, err)

	assert.InDelta(t, 0.1, res.Value, 1e-9)
	assert.InDelta(t, CurrentScale, res.Scale, 1e-9)
	assert.Equal(t, captured, res.CapturedAt)
	assert.Equal(t, "https://engine.example/thumb.png", res.PreviewURL)

	require.Len(t, eng.thumbnails, 1)
	thumb := eng.thumbnails[0]
	assert.Equal(t, "600x400", thumb.Dimensions)
	assert.Equal(t, "png", thumb.Format)
	assert.Equal(t, engine.BufferBounds(site, PreviewRadius), thumb.Region)
	assert.Equal(t, []string{"sur_refl_b02", "sur_refl_b01"}, thumb.Image.NormalizedDifference)
	require.NotNil(t, thumb.Image.Visualize)
	assert.Equal(t, []string{"red", "white", "blue"}, thumb.Image.Visualize.Palette)
	require.Len(t, thumb.Image.Overlays, 1)
	assert.InDelta(t, 0.9, thumb.Image.Overlays[0].Opacity, 1e-9)
}

func TestCurrentIndex_Cached(t *testing.T) {
	eng := newFakeEngine()
	eng.scenes[CurrentCollection] = []engine.Scene{{ID: "s"}}
	eng.values["s"] = ptr(0.4)

	calc, _ := newCalculator(eng)
	_, err := calc.CurrentIndex(context.Background(), site)
	require.NoError(t, err)
	_, err = calc.CurrentIndex(context.Background(), site)
	require.NoError(t, err)

	assert.Equal(t, 1, eng.totalSearches())
}

func TestCurrentIndex_NoScene(t *testing.T) {
	calc, store := newCalculator(newFakeEngine())

	_, err := calc.CurrentIndex(context.Background(), site)
	require.ErrorIs(t, err, ErrNoImageryAvailable)
	assert.Equal(t, 0, store.Len())
}

func TestCurrentIndex_MissingBand(t *testing.T) {
	eng := newFakeEngine()
	eng.scenes[CurrentCollection] = []engine.Scene{{ID: "cloudy"}}
	eng.values["cloudy"] = nil

	calc, _ := newCalculator(eng)
	_, err := calc.CurrentIndex(context.Background(), site)
	require.ErrorIs(t, err, ErrNoImageryAvailable)
}

func TestCurrentIndex_SearchFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.searchErr[CurrentCollection] = errEngine

	calc, _ := newCalculator(eng)
	_, err := calc.CurrentIndex(context.Background(), site)
	require.ErrorIs(t, err, errEngine)
}

func TestCurrentIndex_PreviewFailureDegrades(t *testing.T) {
	eng := newFakeEngine()
	eng.scenes[CurrentCollection] = []engine.Scene{{ID: "s"}}
	eng.values["s"] = ptr(-0.2)
	eng.thumbErr = errEngine

	calc, store := newCalculator(eng)
	res, err := calc.CurrentIndex(context.Background(), site)
	require.NoError(t, err)
	assert.InDelta(t, -0.2, res.Value, 1e-9)
	assert.Empty(t, res.PreviewURL)
	assert.Equal(t, 0, store.Len(), "results without a preview are not cached")
}
