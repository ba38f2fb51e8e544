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

// OpenMeteoProvider implements weather.HistoryProvider on top of the
// Open-Meteo historical archive. It needs no API key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg upstream.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		httpCfg: upstream.HTTPClientConfig{
			Client:  client,
			Timeout: 15 * time.Second,
		},
		circuit: upstream.NewBreaker("openmeteo"),
	}
}

// WithBaseURL points the provider at a different endpoint.
func (p *OpenMeteoProvider) WithBaseURL(u string) *OpenMeteoProvider {
	p.baseURL = u
	return p
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

const openMeteoDaily = "temperature_2m_mean,temperature_2m_max,temperature_2m_min," +
	"relative_humidity_2m_mean,wind_speed_10m_max,precipitation_sum,weather_code"

func (p *OpenMeteoProvider) History(ctx context.Context, coord geo.Coordinate, day time.Time) (weather.HistoricalSnapshot, error) {
	date := day.Format(weather.DateLayout)

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(coord.Lat(), 'f', 6, 64))
		values.Set("longitude", strconv.FormatFloat(coord.Lng(), 'f', 6, 64))
		values.Set("start_date", date)
		values.Set("end_date", date)
		values.Set("daily", openMeteoDaily)
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := upstream.Do(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.HistoricalSnapshot{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Daily *struct {
			Time        []string   `json:"time"`
			TempMean    []*float64 `json:"temperature_2m_mean"`
			TempMax     []*float64 `json:"temperature_2m_max"`
			TempMin     []*float64 `json:"temperature_2m_min"`
			Humidity    []*float64 `json:"relative_humidity_2m_mean"`
			WindMax     []*float64 `json:"wind_speed_10m_max"`
			Precip      []*float64 `json:"precipitation_sum"`
			WeatherCode []*int     `json:"weather_code"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.HistoricalSnapshot{}, fmt.Errorf("%w: %v", upstream.ErrMalformedResponse, err)
	}
	if payload.Daily == nil || len(payload.Daily.Time) == 0 {
		return weather.HistoricalSnapshot{}, fmt.Errorf("%w: no daily series", upstream.ErrMalformedResponse)
	}

	d := payload.Daily
	temp, humidity := first(d.TempMean), first(d.Humidity)
	if temp == nil || humidity == nil {
		return weather.HistoricalSnapshot{}, weather.ErrIncompleteData
	}

	cond := weather.DayCondition{Text: "Unknown", Category: weather.ConditionUnknown}
	if len(d.WeatherCode) > 0 && d.WeatherCode[0] != nil {
		code := *d.WeatherCode[0]
		cond.Text = describeOpenMeteoCode(code)
		cond.Category = mapOpenMeteoCondition(code)
	}

	return weather.HistoricalSnapshot{
		Temperature:   *temp,
		MaxTemp:       valueOrZero(first(d.TempMax)),
		MinTemp:       valueOrZero(first(d.TempMin)),
		Humidity:      *humidity,
		WindSpeed:     valueOrZero(first(d.WindMax)),
		Precipitation: valueOrZero(first(d.Precip)),
		Condition:     cond,
	}, nil
}

func first(xs []*float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	return xs[0]
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// WMO weather interpretation codes, simplified.
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

func describeOpenMeteoCode(code int) string {
	switch mapOpenMeteoCondition(code) {
	case weather.ConditionClear:
		return "Clear sky"
	case weather.ConditionCloudy:
		return "Partly cloudy"
	case weather.ConditionMist:
		return "Fog"
	case weather.ConditionRain:
		return "Rain"
	case weather.ConditionSnow:
		return "Snow"
	case weather.ConditionStorm:
		return "Thunderstorm"
	default:
		return "Unknown"
	}
}
