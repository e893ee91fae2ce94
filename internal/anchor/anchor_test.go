package anchor

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"

	"jittersolve/internal/dem"
	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

func nadirLinescan() *sensor.Linescan {
	n := 32
	l := &sensor.Linescan{
		Rows_: 200, Cols_: 100, Focal: 500,
		T0Pos: 0, DtPos: 1, Positions: make([]r3.Vector, n),
		T0Quat: 0, DtQuat: 1, Quaternions: make([]model.Quaternion, n),
	}
	for i := 0; i < n; i++ {
		l.Positions[i] = r3.Vector{X: float64(i) * 10, Z: 1000}
		l.Quaternions[i] = model.Quaternion{X: 1, W: 0}
	}
	return l
}

func flatDEM() *dem.Interpolator {
	const n = 200
	heights := make([]float64, n*n)
	return &dem.Interpolator{
		LonMin: -10, LonStep: 0.1,
		LatMin: -10, LatStep: 0.1,
		Cols: n, Rows: n,
		Heights: heights,
	}
}

func TestSynthesizeReturnsNilWithZeroAnchorPoints(t *testing.T) {
	hits := Synthesize(Config{NumAnchorPoints: 0}, 0, nadirLinescan(), flatDEM(), func() int { return 0 })
	assert.Nil(t, hits)
}

func TestWithinRangeTrueInsideExtendedTable(t *testing.T) {
	l := nadirLinescan()
	assert.True(t, withinRange(l, l.GetImageTime(100), 5))
}

func TestWithinRangeFalseOutsideExtendedTable(t *testing.T) {
	l := nadirLinescan()
	assert.False(t, withinRange(l, l.GetImageTime(-1000), 5))
}

func TestApproximateRayRejectsZeroFocal(t *testing.T) {
	f := &sensor.Frame{Rows_: 10, Cols_: 10, Focal: 0}
	_, _, ok := approximateRay(f, r3.Vector{X: 5, Y: 5})
	assert.False(t, ok)
}
