package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
)

// OpenWeatherProvider implements weather.CurrentProvider for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg upstream.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		httpCfg: upstream.HTTPClientConfig{
			Client:  client,
			Timeout: 5 * time.Second,
		},
		circuit: upstream.NewBreaker("openweather"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *OpenWeatherProvider) WithBaseURL(u string) *OpenWeatherProvider {
	p.baseURL = u
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Name string `json:"name"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  float64 `json:"humidity"`
		Pressure  float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
		Gust  float64 `json:"gust"`
	} `json:"wind"`
	Weather    []openWeatherCondition `json:"weather"`
	Visibility float64                `json:"visibility"`
	Sys        struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
}

type openWeatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

func (p *OpenWeatherProvider) Current(ctx context.Context, coord geo.Coordinate) (weather.CurrentSnapshot, error) {
	if p.apiKey == "" {
		return weather.CurrentSnapshot{}, fmt.Errorf("openweather api key: %w", weather.ErrNotConfigured)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(coord.Lat(), 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(coord.Lng(), 'f', -1, 64))
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.CurrentSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.CurrentSnapshot{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	if payload.Main == nil {
		return weather.CurrentSnapshot{}, fmt.Errorf("%w: invalid weather data structure received", upstream.ErrMalformedResponse)
	}

	sky := weather.Sky{
		Main:        "Unknown",
		Description: "No description available",
		Icon:        "01d",
		Category:    weather.ConditionUnknown,
	}
	if len(payload.Weather) > 0 {
		w := payload.Weather[0]
		sky.Category = mapOpenWeatherCondition(w.Main)
		if w.Main != "" {
			sky.Main = w.Main
		}
		if w.Description != "" {
			sky.Description = w.Description
		}
		if w.Icon != "" {
			sky.Icon = w.Icon
		}
	}

	place := weather.Place{Name: payload.Name, Country: payload.Sys.Country}
	if place.Name == "" {
		place.Name = "Unknown Location"
	}
	if place.Country == "" {
		place.Country = "Unknown"
	}

	return weather.CurrentSnapshot{
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		TempMin:     payload.Main.TempMin,
		TempMax:     payload.Main.TempMax,
		Humidity:    payload.Main.Humidity,
		Pressure:    payload.Main.Pressure,
		Wind: weather.Wind{
			Speed:  payload.Wind.Speed,
			Degree: payload.Wind.Deg,
			Gust:   payload.Wind.Gust,
		},
		Weather:    sky,
		Visibility: payload.Visibility,
		Location:   place,
		Sunrise:    unixOrNil(payload.Sys.Sunrise),
		Sunset:     unixOrNil(payload.Sys.Sunset),
	}, nil
}

func unixOrNil(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func mapOpenWeatherCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke":
		return weather.ConditionMist
	default:
		return weather.ConditionUnknown
	}
}
