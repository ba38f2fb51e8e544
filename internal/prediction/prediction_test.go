package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
)

type reduceStub struct {
	mu       sync.Mutex
	requests []engine.ReduceRequest
	values   map[string]map[string]*float64
	err      error
}

func (r *reduceStub) ReduceRegion(_ context.Context, req engine.ReduceRequest) (map[string]*float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return r.values[req.Image.Collection], nil
}

func f(v float64) *float64 { return &v }

var now = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)

func TestFeatureBuilder_Build(t *testing.T) {
	stub := &reduceStub{values: map[string]map[string]*float64{
		fireCollection:    {"BurnDate": f(201), "ObservedFlag": nil, "LandCover": f(70)},
		opticalCollection: {"NDVI": f(0.42)},
		climateCollection: {"mean_2m_air_temperature": f(288.1), "u_component_of_wind_10m": f(1.5)},
	}}

	b := NewFeatureBuilder(stub, clockwork.NewFakeClockAt(now))
	feats, err := b.Build(context.Background(), geo.MustNew(41.42, -122.09))
	require.NoError(t, err)

	assert.Equal(t, Features{
		BurnDate:        201,
		NDVI:            0.42,
		LandCover:       70,
		MeanTemperature: 288.1,
		WindComponentU:  1.5,
	}, feats)

	require.Len(t, stub.requests, 3)
	for _, req := range stub.requests {
		assert.Equal(t, "2025-06-08", req.Image.End)
		assert.InDelta(t, featureScale, req.Scale, 1e-9)
		assert.Equal(t, engine.ReducerMean, req.Reducer)
	}
}

func TestFeatureBuilder_ReduceError(t *testing.T) {
	boom := errors.New("engine unavailable")
	b := NewFeatureBuilder(&reduceStub{err: boom}, clockwork.NewFakeClockAt(now))

	_, err := b.Build(context.Background(), geo.MustNew(1, 1))
	require.ErrorIs(t, err, boom)
}

func validFireType() FireTypeRequest {
	return FireTypeRequest{
		Latitude:   f(-33.9),
		Longitude:  f(151.2),
		Brightness: f(330.5),
		BrightT31:  f(295.1),
		FRP:        f(12.3),
		Satellite:  "Terra",
		Confidence: f(0),
		DayNight:   "night",
	}
}

func TestFireTypeRequest_Features(t *testing.T) {
	feats, err := validFireType().Features()
	require.NoError(t, err)
	assert.Equal(t, 0, feats.DayNight)
	assert.InDelta(t, 0, feats.Confidence, 1e-9)

	req := validFireType()
	req.DayNight = "day"
	feats, err = req.Features()
	require.NoError(t, err)
	assert.Equal(t, 1, feats.DayNight)
}

func TestFireTypeRequest_Invalid(t *testing.T) {
	req := validFireType()
	req.Latitude = f(95)
	req.Confidence = f(101)
	req.DayNight = "dusk"
	req.FRP = nil

	_, err := req.Features()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	fields := map[string]bool{}
	for _, fe := range verr.Errors {
		fields[fe.Field] = true
	}
	assert.Equal(t, map[string]bool{"latitude": true, "frp": true, "confidence": true, "daynight": true}, fields)
}

func TestClient_PredictFireRisk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predictFireRisk", r.URL.Path)
		var in Features
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.InDelta(t, 0.42, in.NDVI, 1e-9)
		_, _ = w.Write([]byte(`{"confidence": 0.87}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil, srv.URL+"/", srv.URL, observability.NewMetricsForTesting())
	conf, err := c.PredictFireRisk(context.Background(), Features{NDVI: 0.42})
	require.NoError(t, err)
	assert.InDelta(t, 0.87, conf, 1e-9)
}

func TestClient_PredictFireType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/predictFireType", r.URL.Path)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.InDelta(t, 1, in["daynight"], 0)
		_, _ = w.Write([]byte(`{"predictedType": "vegetation fire"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil, srv.URL, srv.URL, nil)
	got, err := c.PredictFireType(context.Background(), FireTypeFeatures{DayNight: 1})
	require.NoError(t, err)
	assert.Equal(t, "vegetation fire", got)
}

func TestClient_MalformedAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/predictFireRisk" {
			_, _ = w.Write([]byte(`{}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), nil, srv.URL, srv.URL, nil)
	_, err := c.PredictFireRisk(context.Background(), Features{})
	require.ErrorIs(t, err, upstream.ErrMalformedResponse)

	_, err = c.PredictFireType(context.Background(), FireTypeFeatures{})
	require.ErrorIs(t, err, upstream.ErrServerError)
}

func TestService_FireTypeValidatesFirst(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	svc := NewService(nil, NewClient(srv.Client(), nil, srv.URL, srv.URL, nil), observability.NopLogger())
	_, err := svc.FireType(context.Background(), FireTypeRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, hits)
}

func TestClient_LatencyUsesInjectedClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clock.Advance(2 * time.Second)
		_, _ = w.Write([]byte(`{"confidence": 0.5}`))
	}))
	defer srv.Close()

	m := observability.NewMetricsForTesting()
	c := NewClient(srv.Client(), clock, srv.URL, srv.URL, m)
	_, err := c.PredictFireRisk(context.Background(), Features{})
	require.NoError(t, err)

	hist, ok := m.PredictionLatency.WithLabelValues("fire_risk").(interface{ Write(*dto.Metric) error })
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, hist.Write(&out))
	assert.Equal(t, uint64(1), out.GetHistogram().GetSampleCount())
	assert.InDelta(t, 2, out.GetHistogram().GetSampleSum(), 1e-9)
}
