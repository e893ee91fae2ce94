package driver

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jittersolve/internal/config"
	"jittersolve/internal/logging"
	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

func nadirLinescan(n int) *sensor.Linescan {
	l := &sensor.Linescan{
		// Rows_ matches the pose-table length so the iterative line estimate in GroundToImage
		// stays inside the table instead of extrapolating the Lagrange stencil.
		Rows_: n, Cols_: 100, Focal: 500,
		T0Pos: 0, DtPos: 1, Positions: make([]r3.Vector, n),
		T0Quat: 0, DtQuat: 1, Quaternions: make([]model.Quaternion, n),
	}
	for i := 0; i < n; i++ {
		l.Positions[i] = r3.Vector{X: float64(i) * 10, Z: 1000}
		// 180-degree rotation about X: the camera's own +Z axis points toward the world's -Z,
		// i.e. straight down from a platform at positive Z looking at the ground near Z=0.
		l.Quaternions[i] = model.Quaternion{X: 1, Y: 0, Z: 0, W: 0}
	}
	return l
}

// TestRunSingleLinescanObservationNoPriors exercises the scenario a single linescan camera with
// exactly one observation and every optional prior disabled: the driver must run INIT through
// COMMIT without error and leave the point's class/finiteness intact.
func TestRunSingleLinescanObservationNoPriors(t *testing.T) {
	cam := nadirLinescan(32)
	truth := r3.Vector{X: 100, Y: 5, Z: 0}
	pix, err := cam.GroundToImage(truth, sensor.DesiredPrecision)
	require.NoError(t, err)

	point := &model.TriangulatedPoint{ID: 0, XYZ: truth, Initial: truth, Class: model.Free}
	obs := model.Observation{CameraIndex: 0, PointIndex: 0, Pixel: pix, Weight: 1}

	opts := config.Default()
	opts.TriWeight = 0
	opts.CameraPositionWeight = 0
	opts.RotationWeight = 0
	opts.QuatNormWeight = 0
	opts.RollWeight = 0
	opts.YawWeight = 0
	opts.NumIterations = 20

	log := logging.New(logging.Config{Level: slog.LevelError})
	d := New(opts, log)

	prob := &Problem{
		Sensors:      []sensor.Sensor{cam},
		Points:       []*model.TriangulatedPoint{point},
		Observations: []model.Observation{obs},
	}

	result, err := d.Run(context.Background(), prob)
	require.NoError(t, err)
	assert.True(t, result.Summary.Converged)
	assert.Equal(t, model.Free, point.Class)
	assert.False(t, math.IsNaN(point.XYZ.X))
	assert.False(t, math.IsNaN(point.XYZ.Y))
	assert.False(t, math.IsNaN(point.XYZ.Z))
}

// TestRunLinescanCameraAndRotationPriorsWireWithoutPanic exercises the linescan per-sample prior
// wiring (camera-position, rotation, quat-norm) end to end: a linescan problem with every such
// prior enabled must run to completion without the out-of-range panics or unimplemented-family
// gaps the frame-only wiring previously had, and must leave every quaternion sample near unit norm.
func TestRunLinescanCameraAndRotationPriorsWireWithoutPanic(t *testing.T) {
	cam := nadirLinescan(32)
	truth := r3.Vector{X: 100, Y: 5, Z: 0}
	pix, err := cam.GroundToImage(truth, sensor.DesiredPrecision)
	require.NoError(t, err)

	point := &model.TriangulatedPoint{ID: 0, XYZ: truth, Initial: truth, Class: model.Free}
	obs := model.Observation{CameraIndex: 0, PointIndex: 0, Pixel: pix, Weight: 1}

	opts := config.Default()
	opts.TriWeight = 1
	opts.CameraPositionWeight = 1
	opts.RotationWeight = 1
	opts.QuatNormWeight = 1
	opts.RollWeight = 0
	opts.YawWeight = 0
	opts.NumIterations = 20

	log := logging.New(logging.Config{Level: slog.LevelError})
	d := New(opts, log)

	prob := &Problem{
		Sensors:      []sensor.Sensor{cam},
		Points:       []*model.TriangulatedPoint{point},
		Observations: []model.Observation{obs},
	}

	result, err := d.Run(context.Background(), prob)
	require.NoError(t, err)
	assert.True(t, result.Summary.Converged)
	for _, q := range cam.Quaternions {
		n := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
		assert.InDelta(t, 1, n, 1e-3)
	}
}

func TestRunRejectsEmptyProblem(t *testing.T) {
	log := logging.New(logging.Config{Level: slog.LevelError})
	d := New(config.Default(), log)
	_, err := d.Run(context.Background(), &Problem{})
	assert.Error(t, err)
}

func TestStateStringCoversEveryState(t *testing.T) {
	for s := Init; s <= Done; s++ {
		assert.NotEmpty(t, s.String())
	}
}
