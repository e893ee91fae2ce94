// Package fixtures synthesizes jitter-solve scenarios for tests: a linescan camera with a
// sinusoidal pose perturbation and a set of tie points it observes, adapted from the corpus's
// own synthetic-dataset generator but built around pose tables and tie points instead of
// one-pose-per-camera networks.
package fixtures

import (
	"math"

	"github.com/golang/geo/r3"

	"jittersolve/internal/geom"
	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

// LinescanConfig controls the synthetic linescan camera a scenario builds.
type LinescanConfig struct {
	Rows, Cols     int
	NumPosSamples  int
	NumQuatSamples int
	DtPos, DtQuat  float64
	Focal          float64
	Altitude       float64
	// RollAmplitudeDeg and RollPeriodLines inject a sinusoidal roll perturbation, matching the
	// corpus's own practice of deliberately corrupting initial values and letting the solver
	// recover them.
	RollAmplitudeDeg float64
	RollPeriodLines  float64
}

// NominalLinescan builds a straight-and-level linescan camera flying along +X at the given
// altitude, with position samples evenly spaced and quaternions set to nadir-pointing plus any
// configured roll perturbation.
func NominalLinescan(cfg LinescanConfig) *sensor.Linescan {
	l := &sensor.Linescan{
		Rows_:       cfg.Rows,
		Cols_:       cfg.Cols,
		Focal:       cfg.Focal,
		T0Pos:       0,
		DtPos:       cfg.DtPos,
		T0Quat:      0,
		DtQuat:      cfg.DtQuat,
		Positions:   make([]r3.Vector, cfg.NumPosSamples),
		Quaternions: make([]model.Quaternion, cfg.NumQuatSamples),
	}
	speed := 50.0 // meters per position sample, a nominal ground-track speed
	for i := range l.Positions {
		l.Positions[i] = r3.Vector{X: float64(i) * speed, Y: 0, Z: cfg.Altitude}
	}
	for i := range l.Quaternions {
		line := float64(i) * cfg.DtQuat / cfg.DtPos
		roll := 0.0
		if cfg.RollPeriodLines > 0 {
			roll = cfg.RollAmplitudeDeg * math.Pi / 180 * math.Sin(2*math.Pi*line/cfg.RollPeriodLines)
		}
		// nadir-pointing: camera +Z looks down (-world Z); roll rotates about the along-track
		// (world X) axis.
		// Columns are the camera X, Y, Z axes in world coordinates: X = +Y (across), Y = +X
		// (along-track), Z = -Z (down).
		nadir := [3][3]float64{
			{0, 1, 0},
			{1, 0, 0},
			{0, 0, -1},
		}
		rollMat := [3][3]float64{
			{1, 0, 0},
			{0, math.Cos(roll), -math.Sin(roll)},
			{0, math.Sin(roll), math.Cos(roll)},
		}
		l.Quaternions[i] = geom.QuaternionFromMatrix(geom.MatMul(rollMat, nadir))
	}
	return l
}

// GroundGrid builds a grid of free triangulated points under the camera's flight line, with
// mildly undulating terrain, mirroring the corpus's rolling-terrain synthetic ground points.
func GroundGrid(nx, ny int, spacing float64) []*model.TriangulatedPoint {
	pts := make([]*model.TriangulatedPoint, 0, nx*ny)
	id := 0
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			x := float64(ix) * spacing
			y := (float64(iy) - float64(ny)/2) * spacing
			z := 20*math.Sin(x/100) + 10*math.Cos(y/50)
			xyz := r3.Vector{X: x, Y: y, Z: z}
			pts = append(pts, &model.TriangulatedPoint{ID: id, XYZ: xyz, Initial: xyz, Class: model.Free})
			id++
		}
	}
	return pts
}

// ObserveAll projects every point through the sensor and keeps the observations that land
// within the image bounds, mirroring the corpus's field-of-view gating when synthesizing
// observations.
func ObserveAll(cameraIndex int, s sensor.Sensor, pts []*model.TriangulatedPoint, weight float64) []model.Observation {
	var obs []model.Observation
	for _, p := range pts {
		pix, err := s.GroundToImage(p.XYZ, sensor.DesiredPrecision)
		if err != nil {
			continue
		}
		if pix.X < 0 || pix.X > float64(s.Cols()) || pix.Y < 0 || pix.Y > float64(s.Rows()) {
			continue
		}
		obs = append(obs, model.Observation{CameraIndex: cameraIndex, PointIndex: p.ID, Pixel: pix, Weight: weight})
	}
	return obs
}
