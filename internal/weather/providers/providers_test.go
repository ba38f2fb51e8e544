package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
)

func jsonServer(t *testing.T, status int, body string, check func(*http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

var coord = geo.MustNew(41.42, -122.09)

func TestOpenWeather_Current(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{
		"name": "Weed",
		"main": {"temp": 24.1, "feels_like": 23.5, "temp_min": 20, "temp_max": 27, "humidity": 30, "pressure": 1012},
		"wind": {"speed": 3.2, "deg": 270},
		"weather": [{"main": "Clear", "description": "clear sky", "icon": "01d"}],
		"visibility": 10000,
		"sys": {"country": "US", "sunrise": 1700000000, "sunset": 1700040000}
	}`, func(r *http.Request) {
		assert.Equal(t, "41.42", r.URL.Query().Get("lat"))
		assert.Equal(t, "-122.09", r.URL.Query().Get("lon"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "secret", r.URL.Query().Get("appid"))
	})

	p := NewOpenWeatherProvider(srv.Client(), "secret").WithBaseURL(srv.URL)
	snap, err := p.Current(context.Background(), coord)
	require.NoError(t, err)

	assert.InDelta(t, 24.1, snap.Temperature, 1e-9)
	assert.InDelta(t, 1012, snap.Pressure, 1e-9)
	assert.InDelta(t, 270, snap.Wind.Degree, 1e-9)
	assert.Zero(t, snap.Wind.Gust)
	assert.Equal(t, weather.ConditionClear, snap.Weather.Category)
	assert.Equal(t, weather.Place{Name: "Weed", Country: "US"}, snap.Location)
	require.NotNil(t, snap.Sunrise)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), *snap.Sunrise)
}

func TestOpenWeather_Defaults(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"main": {"temp": 1}}`, nil)

	snap, err := NewOpenWeatherProvider(srv.Client(), "k").WithBaseURL(srv.URL).Current(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", snap.Weather.Main)
	assert.Equal(t, "No description available", snap.Weather.Description)
	assert.Equal(t, "01d", snap.Weather.Icon)
	assert.Equal(t, "Unknown Location", snap.Location.Name)
	assert.Equal(t, "Unknown", snap.Location.Country)
	assert.Nil(t, snap.Sunrise)
}

func TestOpenWeather_MissingMain(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"name": "x"}`, nil)

	_, err := NewOpenWeatherProvider(srv.Client(), "k").WithBaseURL(srv.URL).Current(context.Background(), coord)
	require.ErrorIs(t, err, upstream.ErrMalformedResponse)
}

func TestOpenWeather_NoRetryOnServerError(t *testing.T) {
	hits := 0
	srv := jsonServer(t, http.StatusServiceUnavailable, `{}`, func(*http.Request) { hits++ })

	_, err := NewOpenWeatherProvider(srv.Client(), "k").WithBaseURL(srv.URL).Current(context.Background(), coord)
	require.ErrorIs(t, err, upstream.ErrServerError)
	assert.Equal(t, 1, hits)
}

func TestOpenWeather_RequiresKey(t *testing.T) {
	_, err := NewOpenWeatherProvider(http.DefaultClient, "").Current(context.Background(), coord)
	require.ErrorIs(t, err, weather.ErrNotConfigured)
}

func TestWeatherAPI_History(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"forecast": {"forecastday": [{"day": {
		"avgtemp_c": 19.4, "maxtemp_c": 28.0, "mintemp_c": 11.2, "avghumidity": 41,
		"maxwind_kph": 22.3, "totalprecip_mm": 0, "uv": 7,
		"condition": {"text": "Sunny", "icon": "//cdn.weatherapi.com/113.png"}
	}}]}}`, func(r *http.Request) {
		assert.Equal(t, "2023-06-01", r.URL.Query().Get("dt"))
		assert.Equal(t, "41.420000,-122.090000", r.URL.Query().Get("q"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
	})

	p := NewWeatherAPIProvider(srv.Client(), "key").WithBaseURL(srv.URL)
	h, err := p.History(context.Background(), coord, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.InDelta(t, 19.4, h.Temperature, 1e-9)
	assert.InDelta(t, 41, h.Humidity, 1e-9)
	assert.InDelta(t, 22.3, h.WindSpeed, 1e-9)
	assert.Equal(t, "Sunny", h.Condition.Text)
	assert.Equal(t, weather.ConditionClear, h.Condition.Category)
	require.NotNil(t, h.UV)
	assert.InDelta(t, 7, *h.UV, 1e-9)
}

func TestWeatherAPI_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"no forecast", `{}`, upstream.ErrMalformedResponse},
		{"empty forecastday", `{"forecast": {"forecastday": []}}`, upstream.ErrMalformedResponse},
		{"null temperature", `{"forecast": {"forecastday": [{"day": {"avghumidity": 40}}]}}`, weather.ErrIncompleteData},
		{"null humidity", `{"forecast": {"forecastday": [{"day": {"avgtemp_c": 12}}]}}`, weather.ErrIncompleteData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, http.StatusOK, tt.body, nil)
			_, err := NewWeatherAPIProvider(srv.Client(), "k").WithBaseURL(srv.URL).
				History(context.Background(), coord, time.Now())
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenMeteo_History(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"daily": {
		"time": ["2023-06-01"],
		"temperature_2m_mean": [17.5], "temperature_2m_max": [25.1], "temperature_2m_min": [9.8],
		"relative_humidity_2m_mean": [48], "wind_speed_10m_max": [18.4],
		"precipitation_sum": [null], "weather_code": [3]
	}}`, func(r *http.Request) {
		assert.Equal(t, "2023-06-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2023-06-01", r.URL.Query().Get("end_date"))
	})

	h, err := NewOpenMeteoProvider(srv.Client()).WithBaseURL(srv.URL).
		History(context.Background(), coord, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.InDelta(t, 17.5, h.Temperature, 1e-9)
	assert.Zero(t, h.Precipitation)
	assert.Equal(t, weather.ConditionCloudy, h.Condition.Category)
	assert.Nil(t, h.UV)
}

func TestOpenMeteo_IncompleteData(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"daily": {"time": ["2023-06-01"], "temperature_2m_mean": [null], "relative_humidity_2m_mean": [40]}}`, nil)

	_, err := NewOpenMeteoProvider(srv.Client()).WithBaseURL(srv.URL).History(context.Background(), coord, time.Now())
	require.ErrorIs(t, err, weather.ErrIncompleteData)
}

func TestConditionMapping(t *testing.T) {
	assert.Equal(t, weather.ConditionStorm, mapWeatherAPICondition("Patchy light rain with thunder"))
	assert.Equal(t, weather.ConditionRain, mapWeatherAPICondition("Light rain shower"))
	assert.Equal(t, weather.ConditionMist, mapWeatherAPICondition("Freezing fog"))
	assert.Equal(t, weather.ConditionUnknown, mapWeatherAPICondition(""))
	assert.Equal(t, weather.ConditionMist, mapOpenWeatherCondition("Smoke"))
	assert.Equal(t, weather.ConditionSnow, mapOpenMeteoCondition(75))
	assert.Equal(t, weather.ConditionStorm, mapOpenMeteoCondition(99))
}
