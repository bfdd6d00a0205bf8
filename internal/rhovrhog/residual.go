package rhovrhog

import "math"

// OrthogonalDistance returns the signed perpendicular distance from (g, v) to the
// line v = m·g + c. Points below the line are negative.
func OrthogonalDistance(g, v, m, c float64) float64 {
	d := math.Abs(m*g-v+c) / math.Sqrt(m*m+1)
	if v < m*g+c {
		d = -d
	}
	return d
}

// Residuals fills dst with the weighted orthogonal distance of every segment to
// its track's line. params holds the per-track intercepts followed by the slope.
func Residuals(dst, params []float64, ims []IndexedMeasurement) {
	m := params[len(params)-1]
	for i, im := range ims {
		c := params[im.TrackIndex]
		dst[i] = OrthogonalDistance(im.GroundRate, im.CanopyRate, m, c) * im.Weight
	}
}
