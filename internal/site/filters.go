package site

import "github.com/sodankyla/phrates/internal/segments"

// Default filter sets.
var (
	// ClearSky lists the msw flags treated as a clear atmosphere.
	ClearSky = []int{0, 1, 2}
	// NonForest lists the land-cover classes excluded by the forest filter.
	NonForest = []int{20, 30, 50, 80, 90, 121, 126}
)

// Predicate selects segments.
type Predicate func(segments.Segment) bool

// Filter returns the segments matching every predicate, in input order.
func Filter(rows []segments.Segment, preds ...Predicate) []segments.Segment {
	var out []segments.Segment
next:
	for _, s := range rows {
		for _, p := range preds {
			if !p(s) {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

// StrongBeam selects strong-beam segments.
func StrongBeam(s segments.Segment) bool { return s.Strong }

// WeakBeam selects weak-beam segments.
func WeakBeam(s segments.Segment) bool { return !s.Strong }

// Night selects night-time acquisitions.
func Night(s segments.Segment) bool { return s.Night }

// Day selects daytime acquisitions.
func Day(s segments.Segment) bool { return !s.Night }

// ClearAtmosphere selects segments whose msw flag is one of codes.
func ClearAtmosphere(codes []int) Predicate {
	set := toSet(codes)
	return func(s segments.Segment) bool {
		_, ok := set[s.MSW]
		return ok
	}
}

// Forest drops segments whose land-cover class is in excluded.
func Forest(excluded []int) Predicate {
	set := toSet(excluded)
	return func(s segments.Segment) bool {
		_, ok := set[s.LandCover]
		return !ok
	}
}

// SceneType selects one snow scene classification.
func SceneType(t int) Predicate {
	return func(s segments.Segment) bool { return s.SceneType == t }
}

// RateCap drops segments whose canopy or ground rate is not below its cap.
// A cap of zero or less is not applied.
func RateCap(maxCanopy, maxGround float64) Predicate {
	return func(s segments.Segment) bool {
		if maxCanopy > 0 && !(s.CanopyRate < maxCanopy) {
			return false
		}
		if maxGround > 0 && !(s.GroundRate < maxGround) {
			return false
		}
		return true
	}
}

// Optimum selects strong-beam night acquisitions under a clear atmosphere.
func Optimum(codes []int) Predicate {
	clear := ClearAtmosphere(codes)
	return func(s segments.Segment) bool {
		return StrongBeam(s) && Night(s) && clear(s)
	}
}

func toSet(codes []int) map[int]struct{} {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}
