package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

const (
	fireCollection    = "ESA/CCI/FireCCI/5_1"
	climateCollection = "ECMWF/ERA5/DAILY"
	opticalCollection = "COPERNICUS/S2"

	featureScale = 500.0

	// Datasets lag real time by a couple of days.
	dataLag       = 48 * time.Hour
	recentWindow  = 365 * 24 * time.Hour
	climateWindow = 5 * 365 * 24 * time.Hour
)

// Features is the input vector of the fire-risk model. Missing values are 0.
type Features struct {
	BurnDate        float64 `json:"burnDate"`
	NDVI            float64 `json:"ndvi"`
	ObservedFlag    float64 `json:"observedFlag"`
	LandCover       float64 `json:"landCover"`
	MeanTemperature float64 `json:"meanTemperature"`
	WindComponentU  float64 `json:"windComponentU"`
	WindComponentV  float64 `json:"windComponentV"`
}

// Engine is the reduction capability the feature builder needs.
type Engine interface {
	ReduceRegion(ctx context.Context, r engine.ReduceRequest) (map[string]*float64, error)
}

// FeatureBuilder derives model features from engine composites around a
// point.
type FeatureBuilder struct {
	engine Engine
	clock  clockwork.Clock
}

func NewFeatureBuilder(eng Engine, clock clockwork.Clock) *FeatureBuilder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FeatureBuilder{engine: eng, clock: clock}
}

// Build runs the fire, vegetation and climate reductions concurrently.
func (b *FeatureBuilder) Build(ctx context.Context, coord geo.Coordinate) (Features, error) {
	end := b.clock.Now().UTC().Add(-dataLag)
	recent := end.Add(-recentWindow)
	climate := end.Add(-climateWindow)

	var fire, ndvi, era5 map[string]*float64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fire, err = b.reduce(gctx, coord, engine.Image{
			Collection: fireCollection,
			Start:      day(recent),
			End:        day(end),
			Composite:  engine.ReducerMean,
			Select:     []string{"BurnDate", "ObservedFlag", "LandCover"},
		})
		return err
	})
	g.Go(func() (err error) {
		ndvi, err = b.reduce(gctx, coord, engine.Image{
			Collection:           opticalCollection,
			Start:                day(recent),
			End:                  day(end),
			Composite:            engine.ReducerMean,
			NormalizedDifference: []string{"B8", "B4"},
			Rename:               "NDVI",
		})
		return err
	})
	g.Go(func() (err error) {
		era5, err = b.reduce(gctx, coord, engine.Image{
			Collection: climateCollection,
			Start:      day(climate),
			End:        day(end),
			Composite:  engine.ReducerMean,
			Select:     []string{"mean_2m_air_temperature", "u_component_of_wind_10m", "v_component_of_wind_10m"},
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Features{}, err
	}

	return Features{
		BurnDate:        orZero(fire, "BurnDate"),
		NDVI:            orZero(ndvi, "NDVI"),
		ObservedFlag:    orZero(fire, "ObservedFlag"),
		LandCover:       orZero(fire, "LandCover"),
		MeanTemperature: orZero(era5, "mean_2m_air_temperature"),
		WindComponentU:  orZero(era5, "u_component_of_wind_10m"),
		WindComponentV:  orZero(era5, "v_component_of_wind_10m"),
	}, nil
}

func (b *FeatureBuilder) reduce(ctx context.Context, coord geo.Coordinate, img engine.Image) (map[string]*float64, error) {
	values, err := b.engine.ReduceRegion(ctx, engine.ReduceRequest{
		Image:    img,
		Geometry: engine.Point(coord),
		Scale:    featureScale,
		Reducer:  engine.ReducerMean,
	})
	if err != nil {
		return nil, fmt.Errorf("reduce %s: %w", img.Collection, err)
	}
	return values, nil
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func orZero(values map[string]*float64, band string) float64 {
	if v := values[band]; v != nil {
		return *v
	}
	return 0
}
