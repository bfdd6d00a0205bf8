package plots

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/sodankyla/phrates/internal/rhovrhog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot"
)

func fittedResult(t *testing.T) *rhovrhog.Result {
	t.Helper()
	ms := []rhovrhog.Measurement{
		{Date: "20190101", GTX: "gt1l", GroundRate: 1, CanopyRate: 4, Strong: true},
		{Date: "20190101", GTX: "gt1l", GroundRate: 2, CanopyRate: 2, Strong: true},
		{Date: "20190101", GTX: "gt1l", GroundRate: 0.5, CanopyRate: 5, Strong: true},
		{Date: "20190102", GTX: "gt2r", GroundRate: 1, CanopyRate: 2, Night: true},
		{Date: "20190102", GTX: "gt2r", GroundRate: 0.5, CanopyRate: 3, Night: true},
		{Date: "20190102", GTX: "gt2r", GroundRate: 1.5, CanopyRate: 1, Night: true},
	}
	res, err := rhovrhog.Fit(ms, rhovrhog.Options{})
	require.NoError(t, err)
	return res
}

func requireImage(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestFitScatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ph_rates", "rate_test.png")
	require.NoError(t, FitScatter(fittedResult(t), path, DefaultSize))
	requireImage(t, path)
}

func TestFitScatterErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")

	assert.Error(t, FitScatter(nil, path, DefaultSize))
	assert.Error(t, FitScatter(&rhovrhog.Result{}, path, DefaultSize))

	res := fittedResult(t)
	res.Tracks = res.Tracks[:1]
	assert.Error(t, FitScatter(res, path, DefaultSize))
}

func TestAxisMax(t *testing.T) {
	tests := []struct {
		x, y float64
		want float64
	}{
		{2.1, 5.9, 6},
		{3, 3, 3},
		{0.2, 0.4, 1},
		{0, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, axisMax(tt.x, tt.y))
	}
	assert.Len(t, unitTicks(6), 7)
	assert.IsType(t, plot.ConstantTicks{}, unitTicks(maxUnitTicks))
	assert.IsType(t, plot.DefaultTicks{}, unitTicks(1e7))
}

func TestFitScatterFarGroundIntercept(t *testing.T) {
	res := fittedResult(t)
	res.Rows[0].GroundIntercept = 5e6

	path := filepath.Join(t.TempDir(), "far.png")
	require.NoError(t, FitScatter(res, path, DefaultSize))
	requireImage(t, path)
}

func TestHistogram(t *testing.T) {
	lo, hi := 0.0, 16.0
	spec := HistogramSpec{
		Title:   "Radiometry",
		XLabel:  "signal photon rate",
		Bins:    10,
		Density: true,
		XMin:    &lo,
		XMax:    &hi,
	}
	blue, err := ParseColor("#41aabf")
	require.NoError(t, err)
	series := []Series{
		{Label: "snow", Values: []float64{1, 2, 2, 3, 3, 3, 4}, Color: blue},
		{Label: "no snow", Values: []float64{2, 4, 4, 5, 6}},
		{Label: "empty"},
	}

	path := filepath.Join(t.TempDir(), "hist", "radiometry.png")
	require.NoError(t, Histogram(spec, series, path, SizeCm(16, 12)))
	requireImage(t, path)
}

func TestHistogramWithoutValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	err := Histogram(HistogramSpec{}, []Series{{Label: "none"}}, path, DefaultSize)
	assert.Error(t, err)
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.Color
		wantErr bool
	}{
		{"#41aabf", color.NRGBA{R: 0x41, G: 0xaa, B: 0xbf, A: 0xff}, false},
		{"117733", color.NRGBA{R: 0x11, G: 0x77, B: 0x33, A: 0xff}, false},
		{"#11773380", color.NRGBA{R: 0x11, G: 0x77, B: 0x33, A: 0x80}, false},
		{"", nil, false},
		{"#12345", nil, true},
		{"#zzzzzz", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
