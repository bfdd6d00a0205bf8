package rhovrhog

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultCorrelationThreshold is the correlation a track must fall below to carry
// any weight. Canopy returns are expected to rise as ground returns fall.
const DefaultCorrelationThreshold = -0.5

// Correlation returns the Pearson correlation of ground and canopy rates, or NaN
// when it is undefined (fewer than two points, or zero variance on either axis).
func Correlation(ground, canopy []float64) float64 {
	if len(ground) < 2 || len(ground) != len(canopy) {
		return math.NaN()
	}
	r := stat.Correlation(ground, canopy, nil)
	if math.IsInf(r, 0) {
		return math.NaN()
	}
	return r
}

// TrackWeight maps a track correlation to its weight: r² when r is below the
// threshold, 0 otherwise (including undefined correlations).
func TrackWeight(r, threshold float64) float64 {
	if r < threshold {
		return r * r
	}
	return 0
}

// Weigh annotates every measurement with its track key and its track's weight.
// The returned slice follows the input order; the input is not modified.
func Weigh(ms []Measurement, threshold float64) []WeightedMeasurement {
	members := make(map[string][]int)
	for i, m := range ms {
		key := m.TrackKey()
		members[key] = append(members[key], i)
	}

	weights := make(map[string]float64, len(members))
	for key, idx := range members {
		ground := make([]float64, len(idx))
		canopy := make([]float64, len(idx))
		for j, i := range idx {
			ground[j] = ms[i].GroundRate
			canopy[j] = ms[i].CanopyRate
		}
		weights[key] = TrackWeight(Correlation(ground, canopy), threshold)
	}

	out := make([]WeightedMeasurement, len(ms))
	for i, m := range ms {
		key := m.TrackKey()
		out[i] = WeightedMeasurement{
			Measurement: m,
			TrackKey:    key,
			Weight:      weights[key],
		}
	}
	return out
}

// Partition groups weighted measurements into tracks, sorted by key. Segments keep
// their input order within a track.
func Partition(wms []WeightedMeasurement) []Track {
	byKey := make(map[string]*Track)
	var keys []string
	for _, wm := range wms {
		t, ok := byKey[wm.TrackKey]
		if !ok {
			t = &Track{
				Key:    wm.TrackKey,
				Date:   wm.Date,
				GTX:    wm.GTX,
				Weight: wm.Weight,
			}
			byKey[wm.TrackKey] = t
			keys = append(keys, wm.TrackKey)
		}
		t.Measurements = append(t.Measurements, wm)
	}
	sort.Strings(keys)

	tracks := make([]Track, len(keys))
	for i, key := range keys {
		t := byKey[key]
		ground, canopy := t.rates()
		t.Correlation = Correlation(ground, canopy)
		tracks[i] = *t
	}
	return tracks
}

// KeepMultiSegment splits tracks into those with at least two segments and the
// single-segment ones the solver cannot use.
func KeepMultiSegment(tracks []Track) (kept, dropped []Track) {
	for _, t := range tracks {
		if t.Len() > 1 {
			kept = append(kept, t)
		} else {
			dropped = append(dropped, t)
		}
	}
	return kept, dropped
}

func (t Track) rates() (ground, canopy []float64) {
	ground = make([]float64, len(t.Measurements))
	canopy = make([]float64, len(t.Measurements))
	for i, m := range t.Measurements {
		ground[i] = m.GroundRate
		canopy[i] = m.CanopyRate
	}
	return ground, canopy
}
