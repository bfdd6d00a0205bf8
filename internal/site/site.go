// Package site narrows segment tables down to a study site and the acquisition
// conditions of interest.
package site

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/sodankyla/phrates/internal/segments"
)

// BoundingBox is a study-site extent in geographic degrees.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Sodankyla is the default study-site extent.
var Sodankyla = BoundingBox{MinLon: 26.30, MinLat: 66.89, MaxLon: 27.39, MaxLat: 67.89}

// Bound returns the box as an orb.Bound (x = longitude, y = latitude).
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Clip keeps the segments whose position lies inside the box, edges included.
// Segments without a position are dropped.
func Clip(rows []segments.Segment, box BoundingBox) []segments.Segment {
	bound := box.Bound()
	var out []segments.Segment
	for _, s := range rows {
		if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
			continue
		}
		if bound.Contains(orb.Point{s.Longitude, s.Latitude}) {
			out = append(out, s)
		}
	}
	return out
}
