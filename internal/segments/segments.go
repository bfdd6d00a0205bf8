// Package segments reads and writes the per-segment photon rate tables exchanged
// between the analysis steps, and converts them into fit input.
package segments

import (
	"fmt"
	"math"
	"strings"

	"github.com/sodankyla/phrates/internal/rhovrhog"
)

// Canonical column names, as written back out.
const (
	ColLatitude   = "latitude"
	ColLongitude  = "longitude"
	ColDate       = "date"
	ColGTX        = "gtx"
	ColSignalRate = "signal photon rate"
	ColGroundRate = "ρg_c"
	ColCanopyRate = "ρv_c"
	ColStrong     = "strong"
	ColNight      = "night"
	ColMSW        = "msw"
	ColSceneType  = "type"
	ColLandCover  = "DN"
)

// aliases maps lower-cased header spellings to canonical column names.
var aliases = map[string]string{
	"latitude":                         ColLatitude,
	"lat":                              ColLatitude,
	"longitude":                        ColLongitude,
	"lon":                              ColLongitude,
	"date":                             ColDate,
	"gtx":                              ColGTX,
	"signal photon rate":               ColSignalRate,
	"ρg_c":                             ColGroundRate,
	"ground photon rate":               ColGroundRate,
	"ρv_c":                             ColCanopyRate,
	"noise reduced canopy photon rate": ColCanopyRate,
	"strong":                           ColStrong,
	"beam strength":                    ColStrong,
	"night":                            ColNight,
	"night flag":                       ColNight,
	"msw":                              ColMSW,
	"type":                             ColSceneType,
	"dn":                               ColLandCover,
}

// Unknown marks an absent integer code.
const Unknown = -1

// Segment is one row of a photon rate table.
type Segment struct {
	Latitude   float64
	Longitude  float64
	Date       string
	GTX        string
	SignalRate float64
	GroundRate float64
	CanopyRate float64
	Strong     bool
	Night      bool
	MSW        int // atmospheric multiple-scattering warning flag
	SceneType  int // 0 no snow, 1 snow, 2 variable snow
	LandCover  int // land-cover class (DN)

	// Extra holds columns this package does not interpret, by header name.
	Extra map[string]string
	// Line is the line the segment was read from, 0 if it was built in memory.
	Line int
}

// NewSegment returns a Segment with unset numeric fields marked as missing.
func NewSegment() Segment {
	return Segment{
		Latitude:   math.NaN(),
		Longitude:  math.NaN(),
		SignalRate: math.NaN(),
		GroundRate: math.NaN(),
		MSW:        Unknown,
		SceneType:  Unknown,
		LandCover:  Unknown,
	}
}

// Table is an ordered set of segments with the columns they were read with.
type Table struct {
	Columns []string
	Rows    []Segment
}

// WithRows returns a table sharing t's columns with different rows.
func (t *Table) WithRows(rows []Segment) *Table {
	return &Table{Columns: append([]string(nil), t.Columns...), Rows: rows}
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends a column if the table does not already have it.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// RowError locates a cell that could not be used.
type RowError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.File != "" {
		loc = e.File + ":" + loc
	}
	if e.Column != "" {
		loc += fmt.Sprintf(" column %q", e.Column)
	}
	return loc + ": " + e.Err.Error()
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Measurements converts segments into fit input. Every rate must be finite and
// non-negative; the fit does not check again.
func Measurements(rows []Segment) ([]rhovrhog.Measurement, error) {
	ms := make([]rhovrhog.Measurement, len(rows))
	for i, s := range rows {
		line := s.Line
		if line == 0 {
			line = i + 2
		}
		if strings.TrimSpace(s.Date) == "" || strings.TrimSpace(s.GTX) == "" {
			return nil, &RowError{Line: line, Column: ColDate, Err: fmt.Errorf("segment has no date or ground track")}
		}
		if err := checkRate(s.GroundRate); err != nil {
			return nil, &RowError{Line: line, Column: ColGroundRate, Err: err}
		}
		if err := checkRate(s.CanopyRate); err != nil {
			return nil, &RowError{Line: line, Column: ColCanopyRate, Err: err}
		}
		ms[i] = rhovrhog.Measurement{
			Date:       s.Date,
			GTX:        s.GTX,
			GroundRate: s.GroundRate,
			CanopyRate: s.CanopyRate,
			Strong:     s.Strong,
			Night:      s.Night,
		}
	}
	return ms, nil
}

func checkRate(v float64) error {
	switch {
	case math.IsNaN(v):
		return fmt.Errorf("rate is missing")
	case math.IsInf(v, 0):
		return fmt.Errorf("rate is infinite")
	case v < 0:
		return fmt.Errorf("rate %g is negative", v)
	}
	return nil
}
