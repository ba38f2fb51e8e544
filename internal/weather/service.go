package weather

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wildfire-risk-aggregation/internal/cache"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

const (
	CurrentTTL    = 300 * time.Second
	HistoricalTTL = 3600 * time.Second

	// DateLayout is the calendar-day form used in requests and cache keys.
	DateLayout = "2006-01-02"
)

// Service fronts the current and historical providers with the shared cache.
type Service struct {
	current CurrentProvider
	history HistoryProvider
	cache   cache.Store
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewService creates a new Service. Either provider may be nil, in which case
// the corresponding lookup fails with ErrNotConfigured.
func NewService(current CurrentProvider, history HistoryProvider, store cache.Store, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		current: current,
		history: history,
		cache:   store,
		clock:   clock,
		logger:  logger,
	}
}

// Current returns the current conditions at coord. Provider failures are
// folded into an Unavailable marker; this method never fails.
func (s *Service) Current(ctx context.Context, coord geo.Coordinate) CurrentResult {
	key := cache.Key{Kind: cache.KindWeather, Coord: coord}

	snap, err := cache.Fetch(ctx, s.cache, key, CurrentTTL, func(ctx context.Context) (CurrentSnapshot, error) {
		if s.current == nil {
			return CurrentSnapshot{}, ErrNotConfigured
		}
		return s.current.Current(ctx, coord)
	})
	if err != nil {
		s.logger.Error("current weather fetch failed", "coord", coord.Key(), "error", err)
		return unavailable(err)
	}
	return CurrentResult{Snapshot: &snap}
}

// Historical returns the daily summary for date at coord. The date is
// validated before the cache or any provider is consulted.
func (s *Service) Historical(ctx context.Context, coord geo.Coordinate, date string) (*HistoricalSnapshot, error) {
	day, err := ParseDate(date, s.clock.Now())
	if err != nil {
		return nil, err
	}
	normalized := day.Format(DateLayout)
	key := cache.Key{Kind: cache.KindHistoricalWeather, Coord: coord, Date: normalized}

	snap, err := cache.Fetch(ctx, s.cache, key, HistoricalTTL, func(ctx context.Context) (HistoricalSnapshot, error) {
		if s.history == nil {
			return HistoricalSnapshot{}, ErrNotConfigured
		}
		h, err := s.history.History(ctx, coord, day)
		if err != nil {
			return HistoricalSnapshot{}, fmt.Errorf("%s: %w", s.history.Name(), err)
		}
		h.Date = normalized
		s.logger.Info("fetched historical weather",
			"coord", coord.Key(), "date", normalized, "temperature", h.Temperature)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// HistoricalOrNil is Historical with every failure logged and reduced to nil.
func (s *Service) HistoricalOrNil(ctx context.Context, coord geo.Coordinate, date string) *HistoricalSnapshot {
	h, err := s.Historical(ctx, coord, date)
	if err != nil {
		s.logger.Error("historical weather fetch failed",
			"coord", coord.Key(), "date", date, "error", err)
		return nil
	}
	return h
}

// ParseDate accepts YYYY-MM-DD or RFC3339 and rejects days after now.
func ParseDate(date string, now time.Time) (time.Time, error) {
	date = strings.TrimSpace(date)
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		ts, rfcErr := time.Parse(time.RFC3339, date)
		if rfcErr != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		ts = ts.UTC()
		day = time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
	if day.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrFutureDate, day.Format(DateLayout))
	}
	return day, nil
}
