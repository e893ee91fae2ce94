package residuals

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jittersolve/internal/model"
	"jittersolve/internal/paramstore"
	"jittersolve/internal/sensor"
)

func TestFrameReprojectionZeroAtExactObservation(t *testing.T) {
	// 180-degree rotation about X: the camera's +Z axis points down the world -Z axis.
	f := &sensor.Frame{Rows_: 100, Cols_: 100, Focal: 50, Position: r3.Vector{Z: 100}, Quaternion: model.Quaternion{X: 1}}
	pool := paramstore.NewPool()
	posBlock := pool.Register("pos", []float64{0, 0, 100})
	quatBlock := pool.Register("quat", []float64{1, 0, 0, 0})
	point := &model.TriangulatedPoint{XYZ: r3.Vector{Z: 0}}
	obs := model.Observation{Weight: 1, Pixel: r3.Vector{X: 50, Y: 50}}

	cost := FrameReprojection(f, obs, point, posBlock, quatBlock)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0], 1e-6)
	assert.InDelta(t, 0, out[1], 1e-6)
}

func TestFrameReprojectionFailsClosedOnBehindCamera(t *testing.T) {
	// Downward-looking camera (180-degree rotation about X), so a point above it is behind it.
	f := &sensor.Frame{Rows_: 100, Cols_: 100, Focal: 50, Position: r3.Vector{Z: 100}, Quaternion: model.Quaternion{X: 1}}
	pool := paramstore.NewPool()
	posBlock := pool.Register("pos", []float64{0, 0, 100})
	quatBlock := pool.Register("quat", []float64{1, 0, 0, 0})
	point := &model.TriangulatedPoint{XYZ: r3.Vector{Z: 1000}} // behind the camera
	obs := model.Observation{Weight: 1}

	cost := FrameReprojection(f, obs, point, posBlock, quatBlock)
	out, err := cost()
	require.NoError(t, err)
	assert.Equal(t, bigPixelValue, out[0])
	assert.Equal(t, bigPixelValue, out[1])
}

func TestDemConstraintScalesByInverseSigma(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("pt", []float64{1, 2, 3})
	cost := DemConstraint(block, r3.Vector{X: 0, Y: 2, Z: 3}, 0.5)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 2, out[0], 1e-9) // (1-0) / 0.5
	assert.InDelta(t, 0, out[1], 1e-9)
}

func TestCameraPositionPriorPullsTowardInitial(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("pos", []float64{10, 0, 0})
	cost := CameraPositionPrior(block, r3.Vector{X: 5, Y: 0, Z: 0}, 2)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 10, out[0], 1e-9) // 2 * (10 - 5)
}

func TestQuatNormPriorZeroForUnitQuaternion(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("quat", []float64{0, 0, 0, 1})
	cost := QuatNormPrior(block, 1)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0], 1e-9)
}

func TestCameraPositionPriorIndexedReadsSelectedSample(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("pos", []float64{0, 0, 0, 10, 0, 0})
	cost := CameraPositionPriorIndexed(block, 1, r3.Vector{X: 5, Y: 0, Z: 0}, 2)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 10, out[0], 1e-9) // 2 * (10 - 5), from the second sample
	assert.InDelta(t, 0, out[1], 1e-9)
}

func TestRotationPriorIndexedReadsSelectedSample(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("quat", []float64{0, 0, 0, 1, 1, 0, 0, 0})
	cost := RotationPriorIndexed(block, 1, model.Quaternion{X: 0, Y: 0, Z: 0, W: 0}, 3)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 3, out[0], 1e-9) // 3 * (1 - 0), from the second sample
}

func TestQuatNormPriorIndexedZeroForUnitQuaternion(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("quat", []float64{1, 0, 0, 0, 0, 0, 0, 1})
	cost := QuatNormPriorIndexed(block, 1, 1)
	out, err := cost()
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0], 1e-9)
}

func TestRollYawPriorNilWithoutBothNeighbors(t *testing.T) {
	pool := paramstore.NewPool()
	block := pool.Register("quat", []float64{0, 0, 0, 1})
	cost := RollYawPrior(block, r3.Vector{}, r3.Vector{}, r3.Vector{}, false, true, RollYawConfig{RollWeight: 1, YawWeight: 1})
	assert.Nil(t, cost)
}

func TestFlattenPositionsAndQuaternionsRoundTrip(t *testing.T) {
	pos := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	flat := FlattenPositions(pos)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, flat)

	quats := []model.Quaternion{{X: 0, Y: 0, Z: 0, W: 1}}
	flatQ := FlattenQuaternions(quats)
	assert.Equal(t, []float64{0, 0, 0, 1}, flatQ)
}
