package engine

import (
	"time"

	"github.com/i474232898/wildfire-risk-aggregation/internal/geo"
)

// Geometry is a region understood by the engine. Coordinates are [lng, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Radius      float64    `json:"radius,omitempty"`
	Bounds      bool       `json:"bounds,omitempty"`
}

// Point is the exact location of coord.
func Point(c geo.Coordinate) Geometry {
	return Geometry{Type: "point", Coordinates: [2]float64{c.Lng(), c.Lat()}}
}

// Buffer is a disc of radius metres around coord.
func Buffer(c geo.Coordinate, meters float64) Geometry {
	g := Point(c)
	g.Type = "buffer"
	g.Radius = meters
	return g
}

// BufferBounds is the bounding box of Buffer(c, meters).
func BufferBounds(c geo.Coordinate, meters float64) Geometry {
	g := Buffer(c, meters)
	g.Bounds = true
	return g
}

// Visualization maps a single band onto a colour palette.
type Visualization struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

// Overlay paints a geometry over a visualized image.
type Overlay struct {
	Geometry Geometry `json:"geometry"`
	Color    string   `json:"color"`
	Opacity  float64  `json:"opacity"`
}

// Image is a declarative image expression evaluated by the engine. Either
// SceneID names a single scene, or Collection with Start/End and Composite
// builds a composite.
type Image struct {
	Collection string `json:"collection,omitempty"`
	SceneID    string `json:"sceneId,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	Composite  string `json:"composite,omitempty"`

	Select               []string `json:"select,omitempty"`
	NormalizedDifference []string `json:"normalizedDifference,omitempty"`
	Rename               string   `json:"rename,omitempty"`

	Visualize *Visualization `json:"visualize,omitempty"`
	Overlays  []Overlay      `json:"overlays,omitempty"`
}

// Scene is one catalog entry.
type Scene struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"capturedAt"`
}

type SceneQuery struct {
	Collection string    `json:"collection"`
	Point      Geometry  `json:"point"`
	Start      time.Time `json:"start,omitzero"`
	End        time.Time `json:"end,omitzero"`
	// Zero lists every matching scene.
	Limit      int       `json:"limit,omitempty"`
}

const ReducerMean = "mean"

type ReduceRequest struct {
	Image    Image    `json:"image"`
	Geometry Geometry `json:"geometry"`
	Scale    float64  `json:"scale"`
	Reducer  string   `json:"reducer"`
}

type ThumbnailRequest struct {
	Image      Image    `json:"image"`
	Dimensions string   `json:"dimensions"`
	Region     Geometry `json:"region"`
	Format     string   `json:"format"`
}
