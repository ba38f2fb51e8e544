package imagery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
)

const (
	// BaselineTrigger is the current index below which a pre-fire baseline is
	// looked up. Above it there is no burn signal to compare against.
	BaselineTrigger = 0.3

	lookbackYears      = 3
	defaultConcurrency = 4
)

// errNoQualifyingScene covers both an empty catalog and a catalog where no
// scene passed the threshold.
var errNoQualifyingScene = errors.New("no qualifying scene")

// Strategy is one catalog to search for a healthy-vegetation scene.
type Strategy struct {
	Catalog   string
	Bands     [2]string
	Threshold float64
	Scale     float64
}

// DefaultStrategies lists Landsat 8 first, then Sentinel-2.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Catalog: "LANDSAT/LC08/C02/T1_L2", Bands: [2]string{"SR_B5", "SR_B7"}, Threshold: 0.3, Scale: 30},
		{Catalog: "COPERNICUS/S2", Bands: [2]string{"B8", "B12"}, Threshold: 0.3, Scale: 30},
	}
}

// Baseline is the most recent healthy scene before now.
type Baseline struct {
	PreviewURL        string  `json:"previewUrl"`
	Date              string  `json:"date"`
	Index             float64 `json:"index"`
	DaysBeforeCurrent int     `json:"daysBeforeCurrent"`
	Catalog           string  `json:"catalog"`
}

// NeedsBaseline reports whether a current index warrants a baseline search.
func NeedsBaseline(current float64) bool {
	return current < BaselineTrigger
}

// Locator searches the strategies in order for a pre-fire baseline.
type Locator struct {
	engine      Engine
	strategies  []Strategy
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
}

// NewLocator uses DefaultStrategies when none are given.
func NewLocator(eng Engine, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, strategies ...Strategy) *Locator {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{
		engine:      eng,
		strategies:  strategies,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		concurrency: defaultConcurrency,
	}
}

// FindBaseline returns the newest scene in the lookback window whose index
// exceeds its strategy threshold, or nil when there is none. A later strategy
// is only tried when the earlier ones yield no qualifying scene. A catalog
// error ends the search with a nil baseline; only a done ctx is returned as an
// error.
func (l *Locator) FindBaseline(ctx context.Context, coord geo.Coordinate, current float64) (*Baseline, error) {
	if !NeedsBaseline(current) {
		l.logger.Info("current index shows no fire signal, skipping baseline", "coord", coord.Key(), "index", current)
		return nil, nil
	}

	now := l.clock.Now()
	for _, s := range l.strategies {
		scene, value, err := l.searchStrategy(ctx, coord, s, now)
		switch {
		case err == nil:
			l.observe(s.Catalog, "found")
			return l.buildBaseline(ctx, coord, s, scene, value, now), nil
		case errors.Is(err, errNoQualifyingScene):
			l.observe(s.Catalog, "none")
			l.logger.Info("no qualifying baseline scene", "catalog", s.Catalog, "coord", coord.Key())
		default:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.observe(s.Catalog, "error")
			l.logger.Error("baseline search failed", "catalog", s.Catalog, "coord", coord.Key(), "error", err)
			return nil, nil
		}
	}

	l.logger.Info("no suitable pre-fire image found", "coord", coord.Key(), "threshold", BaselineTrigger)
	return nil, nil
}

// searchStrategy lists every scene of the lookback window, then reduces them
// newest-first in batches and stops at the first batch containing a
// qualifying scene. Scenes whose reduction fails are skipped.
func (l *Locator) searchStrategy(ctx context.Context, coord geo.Coordinate, s Strategy, now time.Time) (engine.Scene, float64, error) {
	scenes, err := l.engine.SearchScenes(ctx, engine.SceneQuery{
		Collection: s.Catalog,
		Point:      engine.Point(coord),
		Start:      now.AddDate(-lookbackYears, 0, 0),
		End:        now,
	})
	if err != nil {
		return engine.Scene{}, 0, fmt.Errorf("search %s: %w", s.Catalog, err)
	}

	for start := 0; start < len(scenes); start += l.concurrency {
		end := min(start+l.concurrency, len(scenes))
		batch := scenes[start:end]
		values := make([]*float64, len(batch))

		var g errgroup.Group
		for i, scene := range batch {
			i, scene := i, scene
			g.Go(func() error {
				v, err := reduceIndex(ctx, l.engine, indexImage(scene.ID, s.Bands), coord, s.Scale)
				if err != nil {
					l.logger.Debug("excluding scene", "catalog", s.Catalog, "scene", scene.ID, "error", err)
					return nil
				}
				values[i] = &v
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return engine.Scene{}, 0, err
		}
		for i, v := range values {
			if v != nil && *v > s.Threshold {
				return batch[i], *v, nil
			}
		}
	}
	return engine.Scene{}, 0, errNoQualifyingScene
}

func (l *Locator) buildBaseline(ctx context.Context, coord geo.Coordinate, s Strategy, scene engine.Scene, value float64, now time.Time) *Baseline {
	url, err := l.engine.Thumbnail(ctx, previewRequest(indexImage(scene.ID, s.Bands), coord))
	if err != nil {
		l.logger.Warn("baseline preview render failed", "catalog", s.Catalog, "scene", scene.ID, "error", err)
	}

	days := int(now.Sub(scene.CapturedAt) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}

	b := &Baseline{
		PreviewURL:        url,
		Date:              scene.CapturedAt.UTC().Format("2006-01-02"),
		Index:             value,
		DaysBeforeCurrent: days,
		Catalog:           s.Catalog,
	}
	l.logger.Info("found pre-fire baseline", "catalog", s.Catalog, "date", b.Date, "index", value)
	return b
}

func (l *Locator) observe(catalog, outcome string) {
	if l.metrics == nil {
		return
	}
	l.metrics.BaselineOutcomes.WithLabelValues(catalog, outcome).Inc()
}
