package site

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sodankyla/phrates/internal/segments"
)

func seg(date string, lat, lon float64) segments.Segment {
	s := segments.NewSegment()
	s.Date, s.GTX, s.Latitude, s.Longitude = date, "gt1l", lat, lon
	return s
}

func TestClip(t *testing.T) {
	rows := []segments.Segment{
		seg("a", 67.0, 26.5),
		seg("b", 66.0, 26.5),   // south of the box
		seg("c", 67.0, 28.0),   // east of the box
		seg("d", 66.89, 26.30), // on the corner
		seg("e", math.NaN(), 26.5),
	}
	got := Clip(rows, Sodankyla)

	var dates []string
	for _, s := range got {
		dates = append(dates, s.Date)
	}
	assert.Equal(t, []string{"a", "d"}, dates)
}

func TestMergeScenes(t *testing.T) {
	rows := []segments.Segment{seg("20190301", 67, 27), seg("20190305", 67, 27), seg("20190310", 67, 27)}
	scenes := []Scene{
		{Date: "2019-03-01", Type: Snow},
		{Date: "2019-03-05", Type: NoSnow},
		{Date: "2019-03-05", Type: VariableSnow},
	}

	merged := MergeScenes(rows, scenes)
	require.Len(t, merged, 3)
	assert.Equal(t, Snow, merged[0].SceneType)
	assert.Equal(t, NoSnow, merged[1].SceneType)
	assert.Equal(t, segments.Unknown, merged[2].SceneType)
	assert.Equal(t, segments.Unknown, rows[0].SceneType, "input must not be modified")

	st := Stratify(merged)
	assert.Len(t, st.Snow, 1)
	assert.Len(t, st.NoSnow, 1)
	assert.Empty(t, st.Variable)
}

func TestReadScenes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snow_scene.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,type,notes\n2019-03-01,1,clear\n2019-04-12,2,\n"), 0644))

	scenes, err := ReadScenes(path)
	require.NoError(t, err)
	assert.Equal(t, []Scene{{Date: "20190301", Type: Snow}, {Date: "20190412", Type: VariableSnow}}, scenes)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("date\n2019-03-01\n"), 0644))
	_, err = ReadScenes(bad)
	assert.Error(t, err)
}

func TestFilters(t *testing.T) {
	mk := func(strong, night bool, msw, dn int, rv, rg float64) segments.Segment {
		var s segments.Segment
		s.Strong, s.Night, s.MSW, s.LandCover, s.CanopyRate, s.GroundRate = strong, night, msw, dn, rv, rg
		return s
	}
	optimal := mk(true, true, 1, 60, 0.5, 0.5)
	weakDay := mk(false, false, 0, 60, 0.5, 0.5)
	cloudy := mk(true, true, 4, 20, 0.5, 0.5)
	bright := mk(true, true, 0, 70, 0.5, 2.5)
	rows := []segments.Segment{optimal, weakDay, cloudy, bright}

	tests := []struct {
		name  string
		preds []Predicate
		want  []segments.Segment
	}{
		{name: "strong", preds: []Predicate{StrongBeam}, want: []segments.Segment{optimal, cloudy, bright}},
		{name: "weak", preds: []Predicate{WeakBeam}, want: []segments.Segment{weakDay}},
		{name: "day", preds: []Predicate{Day}, want: []segments.Segment{weakDay}},
		{name: "night", preds: []Predicate{Night}, want: []segments.Segment{optimal, cloudy, bright}},
		{name: "clear", preds: []Predicate{ClearAtmosphere(ClearSky)}, want: []segments.Segment{optimal, weakDay, bright}},
		{name: "forest", preds: []Predicate{Forest(NonForest)}, want: []segments.Segment{optimal, weakDay, bright}},
		{name: "optimum", preds: []Predicate{Optimum(ClearSky)}, want: []segments.Segment{optimal, bright}},
		{name: "optimum under rate cap", preds: []Predicate{Optimum(ClearSky), RateCap(2, 2)}, want: []segments.Segment{optimal}},
		{name: "cap disabled", preds: []Predicate{RateCap(0, 0)}, want: rows},
		{name: "no predicates", want: rows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filter(rows, tt.preds...))
		})
	}
}
