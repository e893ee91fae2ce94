// Package nlsq is a small Ceres-shaped facade over github.com/maorshutman/lm. Residual,
// coupling, calibration and rig code never talks to the solver library directly; it only calls
// Problem.AddParameterBlock, Problem.SetParameterBlockConstant, Problem.AddResidualBlock and
// Problem.Solve, matching the black-box solver contract this repository treats the actual
// Levenberg-Marquardt driver as.
package nlsq

import (
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"jittersolve/internal/paramstore"
)

// CostFunction evaluates a residual block's current value from whatever parameter blocks it
// closed over at registration time. It must read, never write, block state.
type CostFunction func() ([]float64, error)

// LossFunction reweights a raw residual vector (robust loss). Reprojection, DEM and
// triangulation residuals use Cauchy; rotation and quaternion-norm residuals use nil (no loss).
type LossFunction func(raw []float64) []float64

// Cauchy returns a Cauchy robust-loss reweighting with the given threshold, approximating
// Ceres-style robustification as IRLS: each residual component is scaled by
// sqrt(rho(r^2))/|r|, which is the weight a single Gauss-Newton step would apply.
func Cauchy(threshold float64) LossFunction {
	t2 := threshold * threshold
	return func(raw []float64) []float64 {
		out := make([]float64, len(raw))
		for i, r := range raw {
			s2 := r * r
			scale := t2 * logp1(s2/t2) // rho(s) = t^2 * log(1 + s/t^2)
			if s2 == 0 {
				out[i] = 0
				continue
			}
			w := sqrtClamped(scale / s2)
			out[i] = r * w
		}
		return out
	}
}

func logp1(x float64) float64 {
	// math.Log1p avoids cancellation for small x, matching Ceres' own CauchyLoss implementation.
	return math.Log1p(x)
}

func sqrtClamped(x float64) float64 {
	if x < 0 {
		return 0
	}
	return math.Sqrt(x)
}

type residualBlock struct {
	cost   CostFunction
	loss   LossFunction
	blocks []*paramstore.Block
	size   int
}

// Problem accumulates parameter blocks and residual blocks, then hands the assembled dense
// least-squares problem to the LM backend on Solve.
type Problem struct {
	pool      *paramstore.Pool
	residuals []residualBlock
}

// NewProblem creates a problem backed by the given parameter pool.
func NewProblem(pool *paramstore.Pool) *Problem {
	return &Problem{pool: pool}
}

// AddParameterBlock registers (or looks up) a named block backed by data.
func (p *Problem) AddParameterBlock(name string, data []float64) *paramstore.Block {
	return p.pool.Register(name, data)
}

// SetParameterBlockConstant marks a block immutable for the duration of the solve.
func (p *Problem) SetParameterBlockConstant(name string) {
	p.pool.SetConstant(name)
}

// Lookup returns a previously registered block by name.
func (p *Problem) Lookup(name string) (*paramstore.Block, bool) {
	return p.pool.Block(name)
}

// AddResidualBlock registers a residual evaluated by cost, reweighted by loss (nil for none).
// The given parameter blocks are recorded with the residual but Solve does not use them: it
// perturbs every mutable block in the pool, and the cost closure itself decides what it reads.
func (p *Problem) AddResidualBlock(cost CostFunction, loss LossFunction, blocks ...*paramstore.Block) error {
	raw, err := cost()
	if err != nil {
		return err
	}
	p.residuals = append(p.residuals, residualBlock{cost: cost, loss: loss, blocks: blocks, size: len(raw)})
	return nil
}

// Options configures a Solve call. ParameterTol is carried but not passed to the LM backend;
// Solve uses only MaxIterations, FunctionTol and GradientTol.
type Options struct {
	MaxIterations    int
	ParameterTol     float64
	FunctionTol      float64
	GradientTol      float64
}

// DefaultOptions returns the solver defaults this repository's camera model was configured
// with (500 iterations, tight function/gradient tolerances, a configurable parameter
// tolerance).
func DefaultOptions() Options {
	return Options{MaxIterations: 500, ParameterTol: 1e-12, FunctionTol: 1e-16, GradientTol: 1e-16}
}

// Summary reports the outcome of a Solve call.
type Summary struct {
	Iterations       int
	InitialCost      float64
	FinalCost        float64
	Converged        bool
	TerminationCause string
}

// Solve flattens every mutable parameter block into one dense vector, evaluates the full
// residual concatenation through maorshutman/lm with gonum/diff/fd-computed Jacobians, then
// writes the optimized values back into the blocks in place.
func (p *Problem) Solve(opts Options) (Summary, error) {
	mutable := p.pool.Mutable()
	dim := 0
	offsets := make([]int, len(mutable))
	for i, b := range mutable {
		offsets[i] = dim
		dim += b.Size()
	}
	x0 := make([]float64, dim)
	for i, b := range mutable {
		copy(x0[offsets[i]:], b.Values())
	}

	size := 0
	for _, r := range p.residuals {
		size += r.size
	}

	writeBack := func(x []float64) {
		for i, b := range mutable {
			copy(b.Values(), x[offsets[i]:offsets[i]+b.Size()])
		}
	}

	evaluate := func(x []float64) []float64 {
		writeBack(x)
		out := make([]float64, 0, size)
		for _, r := range p.residuals {
			raw, err := r.cost()
			if err != nil {
				// A single failed residual block degrades to a large sentinel contribution
				// rather than aborting the whole evaluation.
				raw = make([]float64, r.size)
				for i := range raw {
					raw[i] = 1000
				}
			}
			if r.loss != nil {
				raw = r.loss(raw)
			}
			out = append(out, raw...)
		}
		return out
	}

	initial := evaluate(x0)
	initialCost := sumSquares(initial)
	if dim == 0 || size == 0 {
		writeBack(x0)
		return Summary{Converged: true, InitialCost: initialCost, FinalCost: initialCost, TerminationCause: "no free parameters"}, nil
	}

	var jacCalls int
	jac := func(dst *mat.Dense, x []float64) {
		jacCalls++
		settings := &fd.JacobianSettings{Formula: fd.Central}
		fd.Jacobian(dst, func(y, x []float64) { copy(y, evaluate(x)) }, x, settings)
	}

	problem := &lm.LMProblem{
		Dim:        dim,
		Size:       size,
		Func:       func(out, x []float64) { copy(out, evaluate(x)) },
		Jac:        jac,
		InitParams: x0,
		Tau:        1e-3,
		Eps1:       opts.FunctionTol,
		Eps2:       opts.GradientTol,
	}

	res, err := lm.LM(*problem, &lm.Settings{Iterations: opts.MaxIterations, ObjectiveTol: opts.FunctionTol})
	if err != nil {
		writeBack(x0)
		return Summary{}, err
	}

	writeBack(res.X)
	final := evaluate(res.X)
	return Summary{
		// lm.Result reports no iteration count; jacCalls (one per accepted step, plus the
		// initial evaluation) is the closest available proxy.
		Iterations:       jacCalls,
		InitialCost:      initialCost,
		FinalCost:        sumSquares(final),
		Converged:        true,
		TerminationCause: res.Status.String(),
	}, nil
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}
