package fit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/CK6170/Oxyfit-go/matrix"
)

// ErrUnderdetermined is returned when there are fewer residuals than parameters.
var ErrUnderdetermined = errors.New("fewer residuals than parameters")

// Settings controls the Levenberg-Marquardt iteration. Zero fields take the
// defaults of DefaultSettings.
type Settings struct {
	MaxIterations  int
	FTol           float64 // relative reduction of the sum of squares
	XTol           float64 // relative step size
	GTol           float64 // infinity norm of the gradient
	Epsfcn         float64 // relative step of the forward-difference Jacobian
	InitialDamping float64 // tau; lambda0 = tau * max(diag(J'J))
}

func DefaultSettings() Settings {
	return Settings{
		MaxIterations:  1400,
		FTol:           1.49012e-8,
		XTol:           1.49012e-8,
		GTol:           0,
		Epsfcn:         2.220446049250313e-16,
		InitialDamping: 1e-3,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxIterations <= 0 {
		s.MaxIterations = d.MaxIterations
	}
	if s.FTol <= 0 {
		s.FTol = d.FTol
	}
	if s.XTol <= 0 {
		s.XTol = d.XTol
	}
	if s.GTol < 0 {
		s.GTol = d.GTol
	}
	if s.Epsfcn <= 0 {
		s.Epsfcn = d.Epsfcn
	}
	if s.InitialDamping <= 0 {
		s.InitialDamping = d.InitialDamping
	}
	return s
}

type Reason string

const (
	ReasonFTol          Reason = "ftol"
	ReasonXTol          Reason = "xtol"
	ReasonGTol          Reason = "gtol"
	ReasonMaxIterations Reason = "max_iterations"
	ReasonStalled       Reason = "stalled"
	ReasonCanceled      Reason = "canceled"
)

// Status reports how the iteration ended. Only ftol, xtol and gtol count as converged.
type Status struct {
	Converged   bool   `json:"converged"`
	Reason      Reason `json:"reason"`
	Iterations  int    `json:"iterations"`
	Evaluations int    `json:"evaluations"`
}

// Progress is emitted after every accepted or final iteration.
type Progress struct {
	Iteration int       `json:"iteration"`
	Cost      float64   `json:"cost"`
	Damping   float64   `json:"damping"`
	X         []float64 `json:"x"`
}

// Optimum is the best point found.
type Optimum struct {
	X         []float64
	Residuals []float64
	Cost      float64 // 0.5 * sum of squared residuals
	Status    Status
}

// ResidualFunc returns the residual vector at x. Its length must not depend on x.
type ResidualFunc func(x []float64) []float64

// LevenbergMarquardt minimizes 0.5*||f(x)||^2 starting at x0. Non-convergence is
// reported in Optimum.Status, not as an error. A canceled ctx stops the iteration
// and returns the best point together with ctx.Err().
func LevenbergMarquardt(ctx context.Context, f ResidualFunc, x0 []float64, s Settings, onProgress func(Progress)) (*Optimum, error) {
	s = s.withDefaults()
	n := len(x0)
	x := append([]float64(nil), x0...)
	r := f(x)
	evals := 1
	m := len(r)
	if m < n {
		return nil, fmt.Errorf("%w: %d residuals, %d parameters", ErrUnderdetermined, m, n)
	}
	cost := halfSquares(r)
	if math.IsNaN(cost) || math.IsInf(cost, 0) {
		return nil, fmt.Errorf("residuals at initial point are not finite")
	}

	emit := func(it int, lambda float64) {
		if onProgress != nil {
			onProgress(Progress{Iteration: it, Cost: cost, Damping: lambda, X: append([]float64(nil), x...)})
		}
	}
	done := func(it int, reason Reason) *Optimum {
		return &Optimum{
			X:         x,
			Residuals: r,
			Cost:      cost,
			Status: Status{
				Converged:   reason == ReasonFTol || reason == ReasonXTol || reason == ReasonGTol,
				Reason:      reason,
				Iterations:  it,
				Evaluations: evals,
			},
		}
	}

	lambda := 0.0
	nu := 2.0
	for it := 1; it <= s.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return done(it-1, ReasonCanceled), err
		}

		jac := jacobian(f, x, r, s.Epsfcn)
		evals += n
		jt := jac.Transpose()
		a := jt.Mul(jac)
		g := jt.MulVector(matrix.VectorOf(r))

		if floats.Norm(g.Values, math.Inf(1)) <= s.GTol {
			emit(it, lambda)
			return done(it, ReasonGTol), nil
		}
		diag := a.Diagonal()
		for i, d := range diag.Values {
			if d <= 0 {
				diag.Values[i] = 1e-12
			}
		}
		if it == 1 {
			lambda = s.InitialDamping * floats.Max(diag.Values)
		}

		for {
			damped := a.Clone()
			for i := 0; i < n; i++ {
				damped.Values[i][i] += lambda * diag.Values[i]
			}
			neg := matrix.NewVector(n)
			for i, gi := range g.Values {
				neg.Values[i] = -gi
			}
			// a singular system still yields the pseudoinverse step
			step, _ := damped.Solve(neg)
			if step == nil {
				return done(it, ReasonStalled), nil
			}

			if floats.Norm(step.Values, 2) <= s.XTol*(floats.Norm(x, 2)+s.XTol) {
				emit(it, lambda)
				return done(it, ReasonXTol), nil
			}

			xn := make([]float64, n)
			floats.AddTo(xn, x, step.Values)
			rn := f(xn)
			evals++
			costN := halfSquares(rn)

			// predicted reduction of the linear model
			pred := 0.0
			for i := 0; i < n; i++ {
				pred += step.Values[i] * (lambda*diag.Values[i]*step.Values[i] - g.Values[i])
			}
			pred *= 0.5

			if costN < cost && pred > 0 {
				rho := (cost - costN) / pred
				rel := (cost - costN) / cost
				x, r, cost = xn, rn, costN
				lambda *= math.Max(1.0/3.0, 1-math.Pow(2*rho-1, 3))
				nu = 2
				emit(it, lambda)
				if rel <= s.FTol || cost == 0 {
					return done(it, ReasonFTol), nil
				}
				break
			}

			lambda *= nu
			nu *= 2
			if math.IsInf(lambda, 0) || nu > 1e30 {
				return done(it, ReasonStalled), nil
			}
			if err := ctx.Err(); err != nil {
				return done(it, ReasonCanceled), err
			}
		}
	}
	return done(s.MaxIterations, ReasonMaxIterations), nil
}

// jacobian returns the m x n forward-difference Jacobian of f at x, where r = f(x).
func jacobian(f ResidualFunc, x, r []float64, epsfcn float64) *matrix.Matrix {
	m, n := len(r), len(x)
	jac := matrix.NewMatrix(m, n)
	eps := math.Sqrt(epsfcn)
	xh := append([]float64(nil), x...)
	for j := 0; j < n; j++ {
		h := eps * math.Abs(x[j])
		if h == 0 {
			h = eps
		}
		xh[j] = x[j] + h
		rh := f(xh)
		xh[j] = x[j]
		col := matrix.NewVector(m)
		for i := 0; i < m; i++ {
			col.Values[i] = (rh[i] - r[i]) / h
		}
		jac.SetCol(j, col)
	}
	return jac
}

func halfSquares(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}
