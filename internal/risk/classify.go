// Package risk maps a burn index onto a coarse fire-risk level.
package risk

import "math"

// Level is the classified fire risk.
type Level string

const (
	Low      Level = "Low"
	Moderate Level = "Moderate"
	High     Level = "High"
)

const (
	highBelow     = -0.1
	moderateBelow = 0.2
)

// Classify is total: NaN, which cannot be compared, is treated as High.
func Classify(index float64) Level {
	switch {
	case math.IsNaN(index) || index < highBelow:
		return High
	case index < moderateBelow:
		return Moderate
	default:
		return Low
	}
}
