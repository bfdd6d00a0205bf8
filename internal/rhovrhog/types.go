// Package rhovrhog estimates per-track canopy/ground photon-rate ratios (ρv/ρg) for
// ICESat-2 segments over a study site.
//
// Segments are grouped into tracks (one satellite overpass, keyed by date and ground
// track), weighted by how strongly their ground and canopy rates are anti-correlated,
// and fitted jointly with a weighted orthogonal distance regression: one shared slope
// for the site and one canopy-axis intercept per track. The fit is a pure function of
// its input slice; reading and writing tables is left to the callers.
package rhovrhog

import (
	"errors"
	"fmt"
)

// Measurement is one photon-counting segment as delivered by the I/O boundary.
// Rates must already be finite and non-negative.
type Measurement struct {
	Date       string
	GTX        string
	GroundRate float64 // ρg_c
	CanopyRate float64 // ρv_c
	Strong     bool
	Night      bool
}

// TrackKey returns the key grouping this segment with the rest of its overpass.
func (m Measurement) TrackKey() string {
	return TrackKey(m.Date, m.GTX)
}

// TrackKey concatenates an acquisition date and ground track designator.
func TrackKey(date, gtx string) string {
	return date + gtx
}

// WeightedMeasurement is a Measurement annotated with its track key and the
// track-level weight.
type WeightedMeasurement struct {
	Measurement
	TrackKey string
	Weight   float64
}

// IndexedMeasurement additionally carries the position of its track in the
// solver's parameter vector.
type IndexedMeasurement struct {
	WeightedMeasurement
	TrackIndex int
}

// Track is the set of segments sharing a track key.
type Track struct {
	Key          string
	Date         string
	GTX          string
	Correlation  float64 // NaN when undefined
	Weight       float64
	Measurements []WeightedMeasurement
}

// Len returns the number of segments in the track.
func (t Track) Len() int {
	return len(t.Measurements)
}

// FitResult is one row of the output table.
type FitResult struct {
	Track           string  `json:"track"`
	Date            string  `json:"date"`
	GTX             string  `json:"gtx"`
	Strong          bool    `json:"strong"`
	Night           bool    `json:"night"`
	CanopyIntercept float64 `json:"ρv"`
	GroundIntercept float64 `json:"ρg"`
	Weight          float64 `json:"weight"`
	Ratio           float64 `json:"ρvρg"`
}

// ErrNoTracks is returned when no track has enough segments to be fitted.
var ErrNoTracks = errors.New("no track has more than one segment")

// DegenerateTrackError reports a track whose geometry cannot seed the fit.
type DegenerateTrackError struct {
	TrackKey string
	Reason   string
}

func (e *DegenerateTrackError) Error() string {
	return fmt.Sprintf("degenerate track %s: %s", e.TrackKey, e.Reason)
}

// ConvergenceError reports a failed least-squares solve. Param is the index of the
// offending parameter, or -1 when the failure is not tied to one; Track names the
// track owning that parameter ("slope" for the shared slope) when known.
type ConvergenceError struct {
	Iterations int
	Param      int
	Track      string
	Reason     string
}

func (e *ConvergenceError) Error() string {
	msg := fmt.Sprintf("solver failed after %d iterations: %s", e.Iterations, e.Reason)
	if e.Track != "" {
		msg += fmt.Sprintf(" (parameter %d, %s)", e.Param, e.Track)
	} else if e.Param >= 0 {
		msg += fmt.Sprintf(" (parameter %d)", e.Param)
	}
	return msg
}
