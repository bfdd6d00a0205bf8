package rhovrhog

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowByTrack(t *testing.T, rows []FitResult, key string) FitResult {
	t.Helper()
	for _, r := range rows {
		if r.Track == key {
			return r
		}
	}
	t.Fatalf("track %s not in results", key)
	return FitResult{}
}

func TestFitScenario(t *testing.T) {
	ms := []Measurement{
		// A: correlation -1
		{Date: "20190301", GTX: "gt1l", GroundRate: 1, CanopyRate: 4, Strong: true},
		{Date: "20190301", GTX: "gt1l", GroundRate: 2, CanopyRate: 2},
		// B: zero variance
		{Date: "20190301", GTX: "gt2l", GroundRate: 1, CanopyRate: 1, Night: true},
		{Date: "20190301", GTX: "gt2l", GroundRate: 1, CanopyRate: 1},
		// C: single segment
		{Date: "20190302", GTX: "gt1r", GroundRate: 5, CanopyRate: 1},
	}

	res, err := Fit(ms, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "20190302gt1r", res.Dropped[0].Key)

	a := rowByTrack(t, res.Rows, "20190301gt1l")
	assert.Equal(t, "20190301", a.Date)
	assert.Equal(t, "gt1l", a.GTX)
	assert.InDelta(t, 1, a.Weight, 1e-12)
	assert.InDelta(t, -2, res.Slope, 1e-6)
	assert.InDelta(t, 6, a.CanopyIntercept, 1e-6)
	assert.InDelta(t, 3, a.GroundIntercept, 1e-6)
	assert.True(t, a.Strong)
	assert.False(t, a.Night)

	// B carries no weight, so its intercept never leaves the initial guess
	b := rowByTrack(t, res.Rows, "20190301gt2l")
	assert.Equal(t, 0.0, b.Weight)
	assert.InDelta(t, 1, b.CanopyIntercept, 1e-9)
	assert.False(t, b.Strong)
	assert.True(t, b.Night)

	for _, r := range res.Rows {
		assert.InDelta(t, -res.Slope, r.Ratio, 1e-9, "ratio must equal -slope for %s", r.Track)
	}
}

// perfectLine returns segments lying exactly on v = m·g + c for each intercept.
func perfectLine(m float64, intercepts map[string]float64, ground []float64) []Measurement {
	var ms []Measurement
	for gtx, c := range intercepts {
		for _, g := range ground {
			ms = append(ms, Measurement{Date: "20200115", GTX: gtx, GroundRate: g, CanopyRate: m*g + c})
		}
	}
	return ms
}

func TestFitRecoversPerfectLines(t *testing.T) {
	const slope = -1.5
	intercepts := map[string]float64{"gt1l": 3, "gt2l": 4.5, "gt3l": 6}
	ms := perfectLine(slope, intercepts, []float64{0.2, 0.7, 1.1, 1.6})

	res, err := Fit(ms, Options{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	assert.InDelta(t, slope, res.Slope, 1e-6)
	for _, r := range res.Rows {
		assert.InDelta(t, intercepts[r.GTX], r.CanopyIntercept, 1e-6, r.GTX)
		assert.InDelta(t, 1, r.Weight, 1e-12)
		assert.InDelta(t, -slope, r.Ratio, 1e-6)
	}
	assert.Less(t, res.Cost, 1e-12)

	// refitting the fitted lines must land on the same parameters
	again := make(map[string]float64)
	for _, r := range res.Rows {
		again[r.GTX] = r.CanopyIntercept
	}
	res2, err := Fit(perfectLine(res.Slope, again, []float64{0.3, 0.9, 1.4}), Options{})
	require.NoError(t, err)
	assert.InDelta(t, res.Slope, res2.Slope, 1e-6)
	for _, r := range res2.Rows {
		assert.InDelta(t, again[r.GTX], r.CanopyIntercept, 1e-6)
	}
}

func TestFitNoisyTracks(t *testing.T) {
	noise := []float64{0.04, -0.03, 0.05, -0.06, 0.02, -0.01}
	var ms []Measurement
	for i, c := range []float64{2.5, 3.5, 4} {
		gtx := []string{"gt1r", "gt2r", "gt3r"}[i]
		for j, g := range []float64{0.3, 0.8, 1.2, 1.5, 1.9, 2.2} {
			ms = append(ms, Measurement{
				Date:       "20200210",
				GTX:        gtx,
				GroundRate: g,
				CanopyRate: -1.2*g + c + noise[(i+j)%len(noise)],
				Strong:     j == 0,
			})
		}
	}
	before := append([]Measurement(nil), ms...)

	res, err := Fit(ms, Options{})
	require.NoError(t, err)
	assert.Equal(t, before, ms, "input must not be modified")
	assert.InDelta(t, -1.2, res.Slope, 0.1)
	for _, r := range res.Rows {
		assert.InDelta(t, -res.Slope, r.Ratio, 1e-9)
		assert.Greater(t, r.Weight, 0.25)
		assert.True(t, r.Strong)
		assert.False(t, r.Night)
	}
}

func TestFitWeightIsTrackMean(t *testing.T) {
	res, err := Fit(perfectLine(-1, map[string]float64{"gt1l": 2, "gt2l": 3}, []float64{0.5, 1, 1.5}), Options{})
	require.NoError(t, err)
	for i, tr := range res.Tracks {
		for _, m := range tr.Measurements {
			assert.Equal(t, tr.Weight, m.Weight)
		}
		assert.InDelta(t, tr.Weight, res.Rows[i].Weight, 1e-15)
	}
}

func TestFitDegenerateTrack(t *testing.T) {
	ms := perfectLine(-1, map[string]float64{"gt1l": 2}, []float64{0.5, 1, 1.5})
	ms = append(ms,
		Measurement{Date: "20200115", GTX: "gt3r", GroundRate: 0, CanopyRate: 1},
		Measurement{Date: "20200115", GTX: "gt3r", GroundRate: 0, CanopyRate: 2},
	)

	_, err := Fit(ms, Options{})
	var dte *DegenerateTrackError
	require.True(t, errors.As(err, &dte), "expected DegenerateTrackError, got %v", err)
	assert.Equal(t, "20200115gt3r", dte.TrackKey)

	res, err := Fit(ms, Options{DropDegenerate: true})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "20200115gt1l", res.Rows[0].Track)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, "20200115gt3r", res.Dropped[0].Key)
}

func TestFitNoTracks(t *testing.T) {
	ms := []Measurement{
		{Date: "20190301", GTX: "gt1l", GroundRate: 1, CanopyRate: 1},
		{Date: "20190302", GTX: "gt1l", GroundRate: 2, CanopyRate: 1},
	}
	_, err := Fit(ms, Options{})
	assert.ErrorIs(t, err, ErrNoTracks)

	_, err = Fit(nil, Options{})
	assert.ErrorIs(t, err, ErrNoTracks)
}

func TestFitIterationLimit(t *testing.T) {
	ms := perfectLine(-1.5, map[string]float64{"gt1l": 3, "gt2l": 5}, []float64{0.2, 0.9, 1.3})
	_, err := Fit(ms, Options{Solver: SolverSettings{MaxIterations: 1}})

	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce), "expected ConvergenceError, got %v", err)
	assert.Equal(t, 1, ce.Iterations)
}

func TestFitZeroCanopyTrackHasNaNRatio(t *testing.T) {
	ms := []Measurement{
		{Date: "20190301", GTX: "gt1l", GroundRate: 1, CanopyRate: 4},
		{Date: "20190301", GTX: "gt1l", GroundRate: 2, CanopyRate: 2},
		{Date: "20190301", GTX: "gt1r", GroundRate: 1, CanopyRate: 0},
		{Date: "20190301", GTX: "gt1r", GroundRate: 2, CanopyRate: 0},
	}

	res, err := Fit(ms, Options{})
	require.NoError(t, err)

	a := rowByTrack(t, res.Rows, "20190301gt1l")
	assert.InDelta(t, -res.Slope, a.Ratio, 1e-9)

	b := rowByTrack(t, res.Rows, "20190301gt1r")
	assert.Equal(t, 0.0, b.Weight)
	assert.Equal(t, 0.0, b.CanopyIntercept)
	assert.Equal(t, 0.0, math.Abs(b.GroundIntercept))
	assert.True(t, math.IsNaN(b.Ratio))
}

func TestAssembleZeroIntercept(t *testing.T) {
	tracks := []Track{{Key: "a"}, {Key: "b"}}
	rows, err := Assemble(tracks, []float64{3, 0, -1.5})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, rows[0].Ratio, 1e-12)
	assert.True(t, math.IsNaN(rows[1].Ratio))
}

func TestAssembleZeroSlope(t *testing.T) {
	tracks := tracksOf(t, sampleMeasurements())
	_, err := Assemble(tracks, []float64{1, 2, 0})

	var ce *ConvergenceError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Param)

	err = nameParam(err, tracks)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "slope", ce.Track)
}
