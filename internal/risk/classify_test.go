package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		index float64
		want  Level
	}{
		{-1, High},
		{-0.5, High},
		{-0.1000001, High},
		{-0.1, Moderate},
		{0, Moderate},
		{0.1, Moderate},
		{0.1999999, Moderate},
		{0.2, Low},
		{0.5, Low},
		{1, Low},
		{math.Inf(-1), High},
		{math.Inf(1), Low},
		{math.NaN(), High},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.index), "index %v", tt.index)
	}
}
