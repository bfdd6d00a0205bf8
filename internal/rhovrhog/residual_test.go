package rhovrhog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrthogonalDistance(t *testing.T) {
	tests := []struct {
		name       string
		g, v, m, c float64
		want       float64
	}{
		{name: "above horizontal line", g: 3, v: 1, m: 0, c: 0, want: 1},
		{name: "below horizontal line", g: 3, v: -1, m: 0, c: 0, want: -1},
		{name: "on the line", g: 1, v: 2, m: -2, c: 4, want: 0},
		{name: "below diagonal", g: 0, v: 0, m: 1, c: 1, want: -1 / math.Sqrt2},
		{name: "above falling line", g: 1, v: 3, m: -1, c: 1, want: 3 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OrthogonalDistance(tt.g, tt.v, tt.m, tt.c), 1e-12)
		})
	}
}

func TestResidualsAreWeighted(t *testing.T) {
	ims := []IndexedMeasurement{
		{WeightedMeasurement: WeightedMeasurement{Measurement: Measurement{GroundRate: 0, CanopyRate: 2}, Weight: 0.5}, TrackIndex: 0},
		{WeightedMeasurement: WeightedMeasurement{Measurement: Measurement{GroundRate: 0, CanopyRate: 0}, Weight: 1}, TrackIndex: 1},
		{WeightedMeasurement: WeightedMeasurement{Measurement: Measurement{GroundRate: 0, CanopyRate: 9}, Weight: 0}, TrackIndex: 1},
	}
	// intercepts 1 and 3, horizontal line
	params := []float64{1, 3, 0}

	dst := make([]float64, len(ims))
	Residuals(dst, params, ims)
	assert.InDeltaSlice(t, []float64{0.5, -3, 0}, dst, 1e-12)
}
