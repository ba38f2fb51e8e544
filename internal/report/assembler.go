package report

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
	"github.com/i474232898/wildfire-risk-aggregation/internal/imagery"
	"github.com/i474232898/wildfire-risk-aggregation/internal/observability"
	"github.com/i474232898/wildfire-risk-aggregation/internal/risk"
	"github.com/i474232898/wildfire-risk-aggregation/internal/weather"
)

type IndexCalculator interface {
	CurrentIndex(ctx context.Context, coord geo.Coordinate) (imagery.IndexResult, error)
}

type BaselineLocator interface {
	FindBaseline(ctx context.Context, coord geo.Coordinate, current float64) (*imagery.Baseline, error)
}

type WeatherSource interface {
	Current(ctx context.Context, coord geo.Coordinate) weather.CurrentResult
	HistoricalOrNil(ctx context.Context, coord geo.Coordinate, date string) *weather.HistoricalSnapshot
}

type LocationResolver interface {
	Resolve(ctx context.Context, coord geo.Coordinate) string
}

// Publisher receives finished reports. Publish must not block the caller for
// long and its failures never affect the report.
type Publisher interface {
	Publish(ctx context.Context, r *Report)
}

// Sources groups the components a report is built from. Publisher is
// optional.
type Sources struct {
	Index     IndexCalculator
	Baseline  BaselineLocator
	Weather   WeatherSource
	Location  LocationResolver
	Publisher Publisher
}

// Assembler runs the location report pipeline.
type Assembler struct {
	src     Sources
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewAssembler(src Sources, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Assembler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{src: src, clock: clock, logger: logger, metrics: metrics}
}

// Assemble validates req and builds its report. Invalid input fails with a
// *geo.ValidationError before any component is called.
func (a *Assembler) Assemble(ctx context.Context, req geo.LocationRequest) (*Report, error) {
	coord, err := geo.Validate(req)
	if err != nil {
		a.countRequest("invalid")
		return nil, err
	}
	return a.AssembleCoordinate(ctx, coord)
}

// AssembleCoordinate builds the report for an already validated coordinate.
// Only an index failure aborts; every other source degrades its own field.
func (a *Assembler) AssembleCoordinate(ctx context.Context, coord geo.Coordinate) (*Report, error) {
	requestID := requestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := a.logger.With("request_id", requestID, "coord", coord.Key())
	log.Info("processing location report")

	var idx imagery.IndexResult
	err := a.timed("index", func() error {
		var err error
		idx, err = a.src.Index.CurrentIndex(ctx, coord)
		return err
	})
	if err != nil {
		a.countRequest("error")
		log.Error("current index failed", "error", err)
		return nil, &PipelineError{Stage: "index", Err: err}
	}

	rep := &Report{
		RequestID:  requestID,
		Lat:        coord.Lat(),
		Lng:        coord.Lng(),
		Index:      idx.Value,
		RiskLevel:  risk.Classify(idx.Value),
		PreviewURL: idx.PreviewURL,
	}

	// The three branches write disjoint fields and never return errors.
	var g errgroup.Group
	g.Go(func() error {
		if !imagery.NeedsBaseline(idx.Value) {
			return nil
		}
		_ = a.timed("baseline", func() error {
			b, err := a.src.Baseline.FindBaseline(ctx, coord, idx.Value)
			if err != nil {
				log.Error("baseline search failed", "error", err)
				return err
			}
			rep.HistoricalBaseline = b
			return nil
		})
		if rep.HistoricalBaseline != nil && rep.HistoricalBaseline.Date != "" {
			_ = a.timed("historical_weather", func() error {
				rep.HistoricalWeather = a.src.Weather.HistoricalOrNil(ctx, coord, rep.HistoricalBaseline.Date)
				return nil
			})
		}
		return nil
	})
	g.Go(func() error {
		return a.timed("current_weather", func() error {
			rep.Weather = a.src.Weather.Current(ctx, coord)
			return nil
		})
	})
	g.Go(func() error {
		return a.timed("location", func() error {
			rep.LocationName = a.src.Location.Resolve(ctx, coord)
			return nil
		})
	})
	_ = g.Wait()

	rep.GeneratedAt = a.clock.Now().UTC()
	a.countRequest("success")
	log.Info("location report ready",
		"risk_level", rep.RiskLevel,
		"index", rep.Index,
		"baseline", rep.HistoricalBaseline != nil,
		"weather_degraded", rep.Weather.Degraded())

	if a.src.Publisher != nil {
		a.src.Publisher.Publish(context.WithoutCancel(ctx), rep)
	}
	return rep, nil
}

func (a *Assembler) timed(stage string, fn func() error) error {
	start := a.clock.Now()
	err := fn()
	if a.metrics != nil {
		a.metrics.StageDuration.WithLabelValues(stage).Observe(a.clock.Since(start).Seconds())
	}
	return err
}

func (a *Assembler) countRequest(outcome string) {
	if a.metrics == nil {
		return
	}
	a.metrics.ReportRequests.WithLabelValues(outcome).Inc()
}

// ErrorStage returns the failed stage of a pipeline error, or "".
func ErrorStage(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}
