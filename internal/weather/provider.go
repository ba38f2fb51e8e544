package weather

import (
	"context"
	"time"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

// CurrentProvider abstracts a current-conditions source (e.g. OpenWeatherMap).
type CurrentProvider interface {
	Name() string
	Current(ctx context.Context, coord geo.Coordinate) (CurrentSnapshot, error)
}

// HistoryProvider abstracts a daily history source (e.g. WeatherAPI,
// Open-Meteo archive). Implementations leave HistoricalSnapshot.Date empty.
type HistoryProvider interface {
	Name() string
	History(ctx context.Context, coord geo.Coordinate, day time.Time) (HistoricalSnapshot, error)
}
