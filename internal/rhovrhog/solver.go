package rhovrhog

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SolverSettings controls the Levenberg–Marquardt iteration.
type SolverSettings struct {
	MaxIterations int
	// Tau scales the initial damping by the largest diagonal entry of JᵀJ.
	Tau         float64
	GradientTol float64 // stop when ‖Jᵀr‖∞ falls below this
	StepTol     float64 // stop when ‖h‖ ≤ StepTol·(‖x‖ + StepTol)
	CostTol     float64 // stop when an accepted step reduces the cost by less than CostTol·cost
}

// DefaultSolverSettings returns the settings used when none are configured.
func DefaultSolverSettings() SolverSettings {
	return SolverSettings{
		MaxIterations: 200,
		Tau:           1e-3,
		GradientTol:   1e-10,
		StepTol:       1e-10,
		CostTol:       1e-10,
	}
}

func (s SolverSettings) withDefaults() SolverSettings {
	d := DefaultSolverSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.Tau <= 0 {
		s.Tau = d.Tau
	}
	if s.GradientTol <= 0 {
		s.GradientTol = d.GradientTol
	}
	if s.StepTol <= 0 {
		s.StepTol = d.StepTol
	}
	if s.CostTol <= 0 {
		s.CostTol = d.CostTol
	}
	return s
}

// Solution is a converged parameter vector.
type Solution struct {
	Params      []float64
	Cost        float64 // sum of squared residuals at Params
	Iterations  int
	Evaluations int
}

// residualFunc fills y with the residuals at x. It must not modify x.
type residualFunc func(y, x []float64)

// solveLM minimises ½‖f(x)‖² over x starting from x0, for m residuals. The Jacobian
// is estimated with forward differences and the damping follows the gain-ratio
// update of Madsen, Nielsen and Tingleff. The damped normal matrix is JᵀJ + μI, so
// parameters that no residual depends on stay put instead of making it singular.
func solveLM(f residualFunc, m int, x0 []float64, s SolverSettings) (Solution, error) {
	s = s.withDefaults()
	n := len(x0)
	if n == 0 || m < n {
		return Solution{}, &ConvergenceError{Param: -1, Reason: fmt.Sprintf("%d residuals cannot determine %d parameters", m, n)}
	}
	if i := firstNonFinite(x0); i >= 0 {
		return Solution{}, &ConvergenceError{Param: i, Reason: "initial parameter is not finite"}
	}

	var evals int
	eval := func(y, x []float64) {
		evals++
		f(y, x)
	}

	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	eval(r, x)
	if i := firstNonFinite(r); i >= 0 {
		return Solution{}, &ConvergenceError{Param: -1, Reason: fmt.Sprintf("residual %d is not finite at the initial parameters", i)}
	}

	jac := mat.NewDense(m, n, nil)
	jtj := mat.NewSymDense(n, nil)
	g := mat.NewVecDense(n, nil)
	normal := func() {
		fd.Jacobian(jac, eval, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: r,
		})
		jtj.SymOuterK(1, jac.T())
		g.MulVec(jac.T(), mat.NewVecDense(m, r))
	}
	gradNorm := func() float64 {
		return floats.Norm(g.RawVector().Data, math.Inf(1))
	}
	done := func(k int, cost float64) (Solution, error) {
		return Solution{Params: x, Cost: 2 * cost, Iterations: k, Evaluations: evals}, nil
	}

	normal()
	cost := 0.5 * floats.Dot(r, r)
	if cost == 0 || gradNorm() <= s.GradientTol {
		return done(0, cost)
	}

	mu := s.Tau * maxDiag(jtj)
	if mu == 0 {
		mu = s.Tau
	}
	nu := 2.0

	xNew := make([]float64, n)
	rNew := make([]float64, m)
	for k := 1; k <= s.MaxIterations; k++ {
		h, err := dampedStep(jtj, g, mu)
		if err != nil {
			return Solution{}, &ConvergenceError{Iterations: k, Param: -1, Reason: err.Error()}
		}
		if i := firstNonFinite(h); i >= 0 {
			return Solution{}, &ConvergenceError{Iterations: k, Param: i, Reason: "step is not finite"}
		}
		if floats.Norm(h, 2) <= s.StepTol*(floats.Norm(x, 2)+s.StepTol) {
			return done(k, cost)
		}

		floats.AddTo(xNew, x, h)
		eval(rNew, xNew)
		newCost := 0.5 * floats.Dot(rNew, rNew)
		predicted := 0.5 * (mu*floats.Dot(h, h) - floats.Dot(h, g.RawVector().Data))

		rho := -1.0
		if firstNonFinite(rNew) < 0 && predicted > 0 {
			rho = (cost - newCost) / predicted
		}
		if rho <= 0 {
			mu *= nu
			nu *= 2
			if math.IsInf(mu, 0) || math.IsNaN(mu) {
				return Solution{}, &ConvergenceError{Iterations: k, Param: -1, Reason: "damping diverged without an improving step"}
			}
			continue
		}

		reduction := cost - newCost
		prev := cost
		copy(x, xNew)
		copy(r, rNew)
		cost = newCost
		normal()
		if cost == 0 || gradNorm() <= s.GradientTol || reduction <= s.CostTol*prev {
			return done(k, cost)
		}
		mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
		nu = 2
	}
	return Solution{}, &ConvergenceError{
		Iterations: s.MaxIterations,
		Param:      -1,
		Reason:     fmt.Sprintf("iteration limit reached with cost %g", 2*cost),
	}
}

// dampedStep solves (JᵀJ + μI) h = -g.
func dampedStep(jtj *mat.SymDense, g *mat.VecDense, mu float64) ([]float64, error) {
	n := jtj.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	a.CopySym(jtj)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, a.At(i, i)+mu)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("damped normal matrix is singular (μ=%g)", mu)
	}
	negG := mat.NewVecDense(n, nil)
	negG.ScaleVec(-1, g)
	h := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(h, negG); err != nil {
		// A poorly conditioned system still yields a usable step; the gain ratio
		// rejects it if it does not reduce the cost.
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("solving damped normal equations: %w", err)
		}
	}
	return h.RawVector().Data, nil
}

func maxDiag(a *mat.SymDense) float64 {
	var max float64
	for i := 0; i < a.SymmetricDim(); i++ {
		if v := a.At(i, i); v > max {
			max = v
		}
	}
	return max
}

func firstNonFinite(v []float64) int {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return i
		}
	}
	return -1
}
