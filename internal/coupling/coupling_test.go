package coupling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcIndexBoundsAsymmetricWidening(t *testing.T) {
	// t1, t2 both map to sample index 100 exactly; the widen is deliberately asymmetric
	// (-3 on the low side, +5 on the high side for the 8-sample stencil), not +/-4.
	t0, dt := 0.0, 1.0
	w, err := CalcIndexBounds(100, 100, t0, dt, 1000)
	require.NoError(t, err)
	assert.Equal(t, 97, w.Beg)
	assert.Equal(t, 105, w.End)
}

func TestCalcIndexBoundsClampsToGridBounds(t *testing.T) {
	w, err := CalcIndexBounds(0, 0, 0, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Beg)

	w2, err := CalcIndexBounds(997, 997, 0, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, w2.End)
}

func TestCalcIndexBoundsFatalOnCollapse(t *testing.T) {
	_, err := CalcIndexBounds(0, 0, 0, 1, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIndexing)
}

func TestCalcIndexBoundsOrdersT1T2(t *testing.T) {
	w1, err := CalcIndexBounds(100, 50, 0, 1, 1000)
	require.NoError(t, err)
	w2, err := CalcIndexBounds(50, 100, 0, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, w1, w2)
}
