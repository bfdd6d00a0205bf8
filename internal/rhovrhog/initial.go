package rhovrhog

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// InitialParams builds the starting parameter vector for the fit: one intercept per
// track (indices 0..N-1) followed by the shared slope (index N).
//
// Each track is anchored at its largest canopy rate, and its slope guess is
// -(max canopy / max ground). The shared slope starts at the mean of those guesses.
// A track whose largest ground rate is zero has no usable slope guess and yields a
// *DegenerateTrackError.
func InitialParams(tracks []Track) ([]float64, error) {
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}

	params := make([]float64, len(tracks)+1)
	slopes := make([]float64, len(tracks))
	for i, t := range tracks {
		if t.Len() == 0 {
			return nil, &DegenerateTrackError{TrackKey: t.Key, Reason: "track has no segments"}
		}
		ground, canopy := t.rates()
		maxV := floats.Max(canopy)
		maxG := floats.Max(ground)
		if maxG == 0 {
			return nil, &DegenerateTrackError{TrackKey: t.Key, Reason: "maximum ground rate is zero"}
		}
		params[i] = maxV
		slopes[i] = -(maxV / maxG)
	}
	params[len(tracks)] = stat.Mean(slopes, nil)
	return params, nil
}

// Index assigns each segment of the given tracks the position of its track in the
// parameter vector.
func Index(tracks []Track) []IndexedMeasurement {
	var n int
	for _, t := range tracks {
		n += t.Len()
	}
	out := make([]IndexedMeasurement, 0, n)
	for i, t := range tracks {
		for _, wm := range t.Measurements {
			out = append(out, IndexedMeasurement{WeightedMeasurement: wm, TrackIndex: i})
		}
	}
	return out
}
