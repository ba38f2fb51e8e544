package geo

import (
	"encoding/json"
	"fmt"
)

// Coordinate is a validated WGS-84 point. The zero value is (0,0), which is a
// valid location; construct coordinates through Parse or New so that
// out-of-range values never reach downstream components.
type Coordinate struct {
	lat float64
	lng float64
}

// New validates lat/lng and returns a Coordinate.
func New(lat, lng float64) (Coordinate, error) {
	return Parse(lat, lng)
}

// MustNew is New for constants and tests. It panics on invalid input.
func MustNew(lat, lng float64) Coordinate {
	c, err := New(lat, lng)
	if err != nil {
		panic(err)
	}
	return c
}

// Lat returns the latitude in decimal degrees.
func (c Coordinate) Lat() float64 { return c.lat }

// Lng returns the longitude in decimal degrees.
func (c Coordinate) Lng() float64 { return c.lng }

// Key returns the canonical string form used for cache and event keys.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.lat, c.lng)
}

func (c Coordinate) String() string {
	return c.Key()
}

// MarshalJSON encodes the coordinate as {"lat":..,"lng":..}.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}{c.lat, c.lng})
}
