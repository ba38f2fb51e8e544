package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/wildfire-risk-aggregation/internal/common"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/upstream"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
)

// WeatherAPIProvider implements weather.HistoryProvider for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg upstream.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1/history.json",
		httpCfg: upstream.HTTPClientConfig{
			Client:  client,
			Timeout: 15 * time.Second,
		},
		circuit: upstream.NewBreaker("weatherapi"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *WeatherAPIProvider) WithBaseURL(u string) *WeatherAPIProvider {
	p.baseURL = u
	return p
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIDay struct {
	AvgTempC      *float64 `json:"avgtemp_c"`
	MaxTempC      float64  `json:"maxtemp_c"`
	MinTempC      float64  `json:"mintemp_c"`
	AvgHumidity   *float64 `json:"avghumidity"`
	MaxWindKph    float64  `json:"maxwind_kph"`
	TotalPrecipMm float64  `json:"totalprecip_mm"`
	UV            *float64 `json:"uv"`
	Condition     *struct {
		Text string `json:"text"`
		Icon string `json:"icon"`
	} `json:"condition"`
}

func (p *WeatherAPIProvider) History(ctx context.Context, coord geo.Coordinate, day time.Time) (weather.HistoricalSnapshot, error) {
	if p.apiKey == "" {
		return weather.HistoricalSnapshot{}, fmt.Errorf("weatherapi api key: %w", weather.ErrNotConfigured)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("q", fmt.Sprintf("%f,%f", coord.Lat(), coord.Lng()))
		values.Set("dt", day.Format(weather.DateLayout))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.HistoricalSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Forecast *struct {
			ForecastDay []struct {
				Day *weatherAPIDay `json:"day"`
			} `json:"forecastday"`
		} `json:"forecast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.HistoricalSnapshot{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	if payload.Forecast == nil || len(payload.Forecast.ForecastDay) == 0 || payload.Forecast.ForecastDay[0].Day == nil {
		return weather.HistoricalSnapshot{}, fmt.Errorf("%w: invalid weather data structure received", upstream.ErrMalformedResponse)
	}

	d := payload.Forecast.ForecastDay[0].Day
	if d.AvgTempC == nil || d.AvgHumidity == nil {
		return weather.HistoricalSnapshot{}, weather.ErrIncompleteData
	}

	cond := weather.DayCondition{Text: "Unknown", Category: weather.ConditionUnknown}
	if d.Condition != nil {
		if d.Condition.Text != "" {
			cond.Text = d.Condition.Text
		}
		cond.Icon = d.Condition.Icon
		cond.Category = mapWeatherAPICondition(d.Condition.Text)
	}

	return weather.HistoricalSnapshot{
		Temperature:   *d.AvgTempC,
		MaxTemp:       d.MaxTempC,
		MinTemp:       d.MinTempC,
		Humidity:      *d.AvgHumidity,
		WindSpeed:     d.MaxWindKph,
		Precipitation: d.TotalPrecipMm,
		Condition:     cond,
		UV:            d.UV,
	}, nil
}

func mapWeatherAPICondition(text string) weather.Condition {
	switch {
	case text == "":
		return weather.ConditionUnknown
	case common.HasAnyFold(text, "thunder", "storm"):
		return weather.ConditionStorm
	case common.HasAnyFold(text, "snow", "sleet", "blizzard", "ice pellets"):
		return weather.ConditionSnow
	case common.HasAnyFold(text, "rain", "shower", "drizzle"):
		return weather.ConditionRain
	case common.HasAnyFold(text, "mist", "fog"):
		return weather.ConditionMist
	case common.HasAnyFold(text, "cloud", "overcast"):
		return weather.ConditionCloudy
	case common.HasAnyFold(text, "sunny", "clear"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}
