package sensor

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jittersolve/internal/model"
)

func nadirLinescan() *Linescan {
	n := 32
	l := &Linescan{
		Rows_: 200, Cols_: 100, Focal: 500,
		T0Pos: 0, DtPos: 1, Positions: make([]r3.Vector, n),
		T0Quat: 0, DtQuat: 1, Quaternions: make([]model.Quaternion, n),
	}
	for i := 0; i < n; i++ {
		l.Positions[i] = r3.Vector{X: float64(i) * 10, Y: 0, Z: 1000}
		// 180-degree rotation about X, pointing the camera +Z axis down the world -Z axis.
		l.Quaternions[i] = model.Quaternion{X: 1, Y: 0, Z: 0, W: 0}
	}
	return l
}

func TestLinescanDeepCopyIsIndependent(t *testing.T) {
	l := nadirLinescan()
	cp := l.DeepCopy().(*Linescan)
	cp.Positions[0] = r3.Vector{X: 999}
	assert.NotEqual(t, l.Positions[0], cp.Positions[0])
}

func TestFrameGroundToImageRejectsBehindCamera(t *testing.T) {
	// Identity orientation: the camera's own +Z axis is the world +Z axis, so a point with a
	// smaller Z than the camera lies behind it.
	f := &Frame{Rows_: 100, Cols_: 100, Focal: 50, Position: r3.Vector{Z: 100}, Quaternion: model.Quaternion{W: 1}}
	_, err := f.GroundToImage(r3.Vector{Z: 0}, DesiredPrecision)
	require.Error(t, err)
}

func TestFrameGroundToImageProjectsPointAhead(t *testing.T) {
	f := &Frame{Rows_: 100, Cols_: 100, Focal: 50, Position: r3.Vector{Z: 100}, Quaternion: model.Quaternion{X: 1, Y: 0, Z: 0, W: 0}}
	// camera frame: x cam axis = quat rotation of world; point below camera along its boresight.
	pix, err := f.GroundToImage(r3.Vector{Z: 0}, DesiredPrecision)
	require.NoError(t, err)
	assert.InDelta(t, 50, pix.X, 1e-6) // principal point + cols/2, centered since point is on boresight
	assert.InDelta(t, 50, pix.Y, 1e-6)
}
