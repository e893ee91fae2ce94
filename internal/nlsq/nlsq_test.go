package nlsq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jittersolve/internal/paramstore"
)

func TestCauchySmallResidualsNearlyUnchanged(t *testing.T) {
	loss := Cauchy(1.0)
	out := loss([]float64{0.01, -0.01})
	assert.InDelta(t, 0.01, out[0], 1e-4)
	assert.InDelta(t, -0.01, out[1], 1e-4)
}

func TestCauchyLargeResidualsAreDownweighted(t *testing.T) {
	loss := Cauchy(1.0)
	out := loss([]float64{100})
	assert.Less(t, abs(out[0]), 100.0)
}

func TestCauchyZeroResidualIsZero(t *testing.T) {
	loss := Cauchy(1.0)
	out := loss([]float64{0})
	assert.Equal(t, 0.0, out[0])
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestSolveWithNoFreeParametersIsNoOp(t *testing.T) {
	pool := paramstore.NewPool()
	p := NewProblem(pool)
	p.AddParameterBlock("pt0", []float64{1, 2, 3})
	p.SetParameterBlockConstant("pt0")

	summary, err := p.Solve(DefaultOptions())
	require.NoError(t, err)
	assert.True(t, summary.Converged)
}

func TestSolveRecoversLinearOffset(t *testing.T) {
	pool := paramstore.NewPool()
	p := NewProblem(pool)
	block := p.AddParameterBlock("x", []float64{0})

	target := 5.0
	cost := func() ([]float64, error) {
		v := block.Values()
		return []float64{v[0] - target}, nil
	}
	require.NoError(t, p.AddResidualBlock(cost, nil, block))

	summary, err := p.Solve(DefaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, 0, summary.FinalCost, 1e-6)
	assert.InDelta(t, target, block.Values()[0], 1e-3)
}
