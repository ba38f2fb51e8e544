// Package imagery computes normalized-difference indices from satellite
// scenes: the current value at a point and a historical pre-fire baseline.
package imagery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/i474232898/wildfire-risk-aggregation/internal/cache"
	"github.com/i474232898/wildfire-risk-aggregation/internal/engine"
	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

const (
	// IndexBand is the output band name of every index expression.
	IndexBand = "nbr"

	CurrentCollection = "MODIS/006/MOD13A1"
	CurrentScale      = 500.0

	// RegionRadius is the reduction region around the query point, in metres.
	RegionRadius = 500.0
	// PreviewRadius bounds the rendered preview, in metres.
	PreviewRadius = 50000.0

	IndexTTL = 300 * time.Second
)

var currentBands = [2]string{"sur_refl_b02", "sur_refl_b01"}

// ErrNoImageryAvailable means no scene covers the point or the index could not
// be computed from it. It is fatal for a location report.
var ErrNoImageryAvailable = errors.New("no image data available for the specified location")

// Engine is the subset of the geospatial engine client used here.
type Engine interface {
	SearchScenes(ctx context.Context, q engine.SceneQuery) ([]engine.Scene, error)
	ReduceRegion(ctx context.Context, r engine.ReduceRequest) (map[string]*float64, error)
	Thumbnail(ctx context.Context, r engine.ThumbnailRequest) (string, error)
}

// IndexResult is the current index at a point.
type IndexResult struct {
	Value      float64   `json:"value"`
	Scale      float64   `json:"scale"`
	SceneID    string    `json:"sceneId"`
	CapturedAt time.Time `json:"capturedAt"`
	PreviewURL string    `json:"previewUrl"`
}

// Calculator computes the current index from the newest scene of the
// primary collection.
type Calculator struct {
	engine Engine
	cache  cache.Store
	logger *slog.Logger
}

func NewCalculator(eng Engine, store cache.Store, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{engine: eng, cache: store, logger: logger}
}

// CurrentIndex returns the index for the latest scene covering coord. The
// reduction and the preview render run concurrently; a failed preview leaves
// PreviewURL empty instead of failing the call.
func (c *Calculator) CurrentIndex(ctx context.Context, coord geo.Coordinate) (IndexResult, error) {
	key := cache.Key{Kind: cache.KindIndex, Coord: coord}
	if v, ok := c.cache.Get(key); ok {
		if res, ok := v.(IndexResult); ok {
			return res, nil
		}
	}

	scenes, err := c.engine.SearchScenes(ctx, engine.SceneQuery{
		Collection: CurrentCollection,
		Point:      engine.Point(coord),
		Limit:      1,
	})
	if err != nil {
		return IndexResult{}, fmt.Errorf("search %s: %w", CurrentCollection, err)
	}
	if len(scenes) == 0 {
		return IndexResult{}, ErrNoImageryAvailable
	}
	scene := scenes[0]
	img := indexImage(scene.ID, currentBands)

	res := IndexResult{Scale: CurrentScale, SceneID: scene.ID, CapturedAt: scene.CapturedAt}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := reduceIndex(gctx, c.engine, img, coord, CurrentScale)
		if err != nil {
			return err
		}
		res.Value = v
		return nil
	})
	g.Go(func() error {
		u, err := c.engine.Thumbnail(gctx, previewRequest(img, coord))
		if err != nil {
			c.logger.Warn("index preview render failed", "coord", coord.Key(), "scene", scene.ID, "error", err)
			return nil
		}
		res.PreviewURL = u
		return nil
	})
	if err := g.Wait(); err != nil {
		return IndexResult{}, err
	}

	c.logger.Info("computed current index", "coord", coord.Key(), "scene", scene.ID, "value", res.Value)
	if res.PreviewURL != "" {
		c.cache.Set(key, res, IndexTTL)
	}
	return res, nil
}

func indexImage(sceneID string, bands [2]string) engine.Image {
	return engine.Image{
		SceneID:              sceneID,
		NormalizedDifference: bands[:],
		Rename:               IndexBand,
	}
}

// reduceIndex returns the regional mean of the index band. A missing or null
// band value means the scene has no usable pixels there.
func reduceIndex(ctx context.Context, eng Engine, img engine.Image, coord geo.Coordinate, scale float64) (float64, error) {
	values, err := eng.ReduceRegion(ctx, engine.ReduceRequest{
		Image:    img,
		Geometry: engine.Buffer(coord, RegionRadius),
		Scale:    scale,
		Reducer:  engine.ReducerMean,
	})
	if err != nil {
		return 0, err
	}
	v, ok := values[IndexBand]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: band %q empty for scene %s", ErrNoImageryAvailable, IndexBand, img.SceneID)
	}
	return *v, nil
}

func previewRequest(img engine.Image, coord geo.Coordinate) engine.ThumbnailRequest {
	img.Visualize = &engine.Visualization{
		Min:     -1,
		Max:     1,
		Palette: []string{"red", "white", "blue"},
	}
	img.Overlays = []engine.Overlay{{
		Geometry: engine.Buffer(coord, RegionRadius),
		Color:    "#FF0000",
		Opacity:  0.9,
	}}
	return engine.ThumbnailRequest{
		Image:      img,
		Dimensions: "600x400",
		Region:     engine.BufferBounds(coord, PreviewRadius),
		Format:     "png",
	}
}
