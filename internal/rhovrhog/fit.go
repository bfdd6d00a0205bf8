package rhovrhog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Options configures a fit. The zero value is usable.
type Options struct {
	// CorrelationThreshold defaults to DefaultCorrelationThreshold when zero.
	CorrelationThreshold float64
	// DropDegenerate excludes tracks that cannot seed the fit instead of failing.
	DropDegenerate bool
	Solver         SolverSettings
	Logger         *zap.SugaredLogger
}

// Result is the outcome of Fit.
type Result struct {
	Rows       []FitResult
	Slope      float64
	Tracks     []Track // fitted tracks, in parameter order
	Dropped    []Track // tracks excluded before solving
	Iterations int
	Cost       float64
}

// Fit runs the whole pipeline over ms: weighting, single-segment exclusion,
// initialisation, the weighted orthogonal distance solve and result assembly.
func Fit(ms []Measurement, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	threshold := opts.CorrelationThreshold
	if threshold == 0 {
		threshold = DefaultCorrelationThreshold
	}

	tracks := Partition(Weigh(ms, threshold))
	for _, t := range tracks {
		logger.Debugw("track weighted", "track", t.Key, "segments", t.Len(), "r", t.Correlation, "weight", t.Weight)
	}

	kept, dropped := KeepMultiSegment(tracks)
	for _, t := range dropped {
		logger.Debugw("dropping single-segment track", "track", t.Key)
	}

	if opts.DropDegenerate {
		var usable []Track
		for _, t := range kept {
			if _, err := InitialParams([]Track{t}); err != nil {
				logger.Warnw("dropping degenerate track", "track", t.Key, "error", err)
				dropped = append(dropped, t)
				continue
			}
			usable = append(usable, t)
		}
		kept = usable
	}
	if len(kept) == 0 {
		return nil, ErrNoTracks
	}

	x0, err := InitialParams(kept)
	if err != nil {
		return nil, err
	}
	ims := Index(kept)
	logger.Debugw("starting solve", "tracks", len(kept), "segments", len(ims), "initial_slope", x0[len(x0)-1])

	sol, err := solveLM(func(y, x []float64) {
		Residuals(y, x, ims)
	}, len(ims), x0, opts.Solver)
	if err != nil {
		return nil, nameParam(err, kept)
	}
	logger.Debugw("solve converged", "iterations", sol.Iterations, "evaluations", sol.Evaluations, "cost", sol.Cost)

	rows, err := Assemble(kept, sol.Params)
	if err != nil {
		return nil, nameParam(err, kept)
	}
	return &Result{
		Rows:       rows,
		Slope:      sol.Params[len(kept)],
		Tracks:     kept,
		Dropped:    dropped,
		Iterations: sol.Iterations,
		Cost:       sol.Cost,
	}, nil
}

// Assemble converts fitted parameters into one FitResult per track:
// ρv is the track intercept, ρg = -ρv/slope, and ρv/ρg their ratio.
// The ratio equals -slope except for a track whose intercept is exactly 0,
// where ρg is 0 too and the ratio is NaN. A flat zero canopy track gets
// there, since it carries no weight and keeps its zero starting intercept.
func Assemble(tracks []Track, params []float64) ([]FitResult, error) {
	if len(params) != len(tracks)+1 {
		return nil, fmt.Errorf("have %d parameters for %d tracks", len(params), len(tracks))
	}
	slope := params[len(tracks)]
	if slope == 0 {
		return nil, &ConvergenceError{Param: len(tracks), Reason: "fitted slope is zero"}
	}

	rows := make([]FitResult, len(tracks))
	for i, t := range tracks {
		rv := params[i]
		rg := -rv / slope
		rows[i] = FitResult{
			Track:           t.Key,
			Date:            t.Date,
			GTX:             t.GTX,
			Strong:          anyOf(t.Measurements, func(m WeightedMeasurement) bool { return m.Strong }),
			Night:           anyOf(t.Measurements, func(m WeightedMeasurement) bool { return m.Night }),
			CanopyIntercept: rv,
			GroundIntercept: rg,
			Weight:          meanWeight(t),
			Ratio:           rv / rg,
		}
	}
	return rows, nil
}

func anyOf(ms []WeightedMeasurement, flag func(WeightedMeasurement) bool) bool {
	for _, m := range ms {
		if flag(m) {
			return true
		}
	}
	return false
}

func meanWeight(t Track) float64 {
	w := make([]float64, len(t.Measurements))
	for i, m := range t.Measurements {
		w[i] = m.Weight
	}
	return stat.Mean(w, nil)
}

// nameParam fills in the track owning a failed parameter.
func nameParam(err error, tracks []Track) error {
	var ce *ConvergenceError
	if !errors.As(err, &ce) || ce.Param < 0 {
		return err
	}
	switch {
	case ce.Param < len(tracks):
		ce.Track = tracks[ce.Param].Key
	case ce.Param == len(tracks):
		ce.Track = "slope"
	}
	return ce
}
