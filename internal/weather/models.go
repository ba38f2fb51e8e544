package weather

import (
	"encoding/json"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Wind is measured in m/s and meteorological degrees.
type Wind struct {
	Speed  float64 `json:"speed"`
	Degree float64 `json:"degree"`
	Gust   float64 `json:"gust"`
}

// Sky describes the provider's current condition text.
type Sky struct {
	Main        string    `json:"main"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Category    Condition `json:"category"`
}

// Place is the provider's own idea of where the observation comes from.
type Place struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

// CurrentSnapshot is the normalized current observation for a coordinate.
// Temperatures are °C, pressure hPa, visibility metres.
type CurrentSnapshot struct {
	Temperature float64    `json:"temperature"`
	FeelsLike   float64    `json:"feels_like"`
	TempMin     float64    `json:"temp_min"`
	TempMax     float64    `json:"temp_max"`
	Humidity    float64    `json:"humidity"`
	Pressure    float64    `json:"pressure"`
	Wind        Wind       `json:"wind"`
	Weather     Sky        `json:"weather"`
	Visibility  float64    `json:"visibility"`
	Location    Place      `json:"location"`
	Sunrise     *time.Time `json:"sunrise"`
	Sunset      *time.Time `json:"sunset"`
}

// DayCondition is the summary condition of a historical day.
type DayCondition struct {
	Text     string    `json:"text"`
	Icon     string    `json:"icon"`
	Category Condition `json:"category"`
}

// HistoricalSnapshot summarises one past day. Wind speed is the daily
// maximum in km/h and precipitation the daily total in mm.
type HistoricalSnapshot struct {
	Temperature   float64      `json:"temperature"`
	MaxTemp       float64      `json:"max_temp"`
	MinTemp       float64      `json:"min_temp"`
	Humidity      float64      `json:"humidity"`
	WindSpeed     float64      `json:"wind_speed"`
	Precipitation float64      `json:"precipitation"`
	Condition     DayCondition `json:"condition"`
	Date          string       `json:"date"`
	UV            *float64     `json:"uv"`
}

// DegradedMessage is shown to clients when current weather could not be
// fetched.
const DegradedMessage = "Weather data unavailable"

// Unavailable marks a current-weather lookup that failed.
type Unavailable struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
}

// CurrentResult is either a snapshot or an Unavailable marker, never both.
type CurrentResult struct {
	Snapshot    *CurrentSnapshot
	Unavailable *Unavailable
}

// Degraded reports whether the lookup failed.
func (r CurrentResult) Degraded() bool {
	return r.Snapshot == nil
}

func (r CurrentResult) MarshalJSON() ([]byte, error) {
	if r.Snapshot != nil {
		return json.Marshal(r.Snapshot)
	}
	if r.Unavailable != nil {
		return json.Marshal(r.Unavailable)
	}
	return json.Marshal(Unavailable{Error: true, Message: DegradedMessage})
}

func unavailable(err error) CurrentResult {
	return CurrentResult{Unavailable: &Unavailable{
		Error:   true,
		Message: DegradedMessage,
		Details: err.Error(),
	}}
}
