package site

import (
	"fmt"
	"strings"

	"github.com/sodankyla/phrates/internal/segments"
)

// Snow scene classifications.
const (
	NoSnow       = 0
	Snow         = 1
	VariableSnow = 2
)

// Scene is the externally produced snow classification of one acquisition date.
type Scene struct {
	Date string
	Type int
}

// ReadScenes reads a snow scene table: a date column (dashes allowed, as in
// 2019-03-01) and a type column.
func ReadScenes(path string) ([]Scene, error) {
	tbl, err := segments.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !tbl.HasColumn(segments.ColDate) || !tbl.HasColumn(segments.ColSceneType) {
		return nil, fmt.Errorf("%s: snow scene table needs %q and %q columns", path, segments.ColDate, segments.ColSceneType)
	}
	scenes := make([]Scene, 0, len(tbl.Rows))
	for _, r := range tbl.Rows {
		scenes = append(scenes, Scene{Date: NormalizeDate(r.Date), Type: r.SceneType})
	}
	return scenes, nil
}

// NormalizeDate strips separators so that 2019-03-01 and 20190301 compare equal.
func NormalizeDate(date string) string {
	return strings.ReplaceAll(strings.TrimSpace(date), "-", "")
}

// MergeScenes attaches each segment's snow scene type by date. Every segment is
// kept; those without a scene keep segments.Unknown. When a date appears more than
// once in scenes the first entry wins.
func MergeScenes(rows []segments.Segment, scenes []Scene) []segments.Segment {
	byDate := make(map[string]int, len(scenes))
	for _, sc := range scenes {
		d := NormalizeDate(sc.Date)
		if _, ok := byDate[d]; !ok {
			byDate[d] = sc.Type
		}
	}

	out := make([]segments.Segment, len(rows))
	for i, s := range rows {
		if t, ok := byDate[NormalizeDate(s.Date)]; ok {
			s.SceneType = t
		}
		out[i] = s
	}
	return out
}

// Strata holds a table split by snow scene type.
type Strata struct {
	NoSnow   []segments.Segment
	Snow     []segments.Segment
	Variable []segments.Segment
}

// Stratify splits segments by snow scene type. Unclassified segments are left out.
func Stratify(rows []segments.Segment) Strata {
	var st Strata
	for _, s := range rows {
		switch s.SceneType {
		case NoSnow:
			st.NoSnow = append(st.NoSnow, s)
		case Snow:
			st.Snow = append(st.Snow, s)
		case VariableSnow:
			st.Variable = append(st.Variable, s)
		}
	}
	return st
}
