// Package config holds the Options jitter-solve is run with, populated from CLI flags. Field
// names and defaults mirror the camera model's own option table.
package config

import "flag"

// Options flattens every tunable in the jitter solve's configuration surface.
type Options struct {
	MaxInitReprojError float64
	RobustThreshold    float64

	TriWeight          float64
	TriRobustThreshold  float64

	HeightsFromDemUncertainty     float64
	HeightsFromDemRobustThreshold float64

	CameraPositionWeight          float64
	CameraPositionRobustThreshold float64

	RotationWeight float64
	QuatNormWeight float64

	RollWeight              float64
	YawWeight                float64
	InitialCameraConstraint bool

	NumAnchorPointsPerImage    int
	NumAnchorPointsPerTile     int
	NumAnchorPointsExtraLines  float64
	AnchorWeight               float64

	NumLinesPerPosition    int
	NumLinesPerOrientation int

	ParameterTolerance float64
	NumIterations      int
}

// Default returns the defaults this solve was configured with, matching the camera model's own
// jitter-solve CLI defaults.
func Default() Options {
	return Options{
		MaxInitReprojError: 10,
		RobustThreshold:    0.5,

		TriWeight:         0.1,
		TriRobustThreshold: 0.1,

		HeightsFromDemUncertainty:     10.0,
		HeightsFromDemRobustThreshold: 0.1,

		CameraPositionWeight:          0.0,
		CameraPositionRobustThreshold: 0.1,

		RotationWeight: 0.0,
		QuatNormWeight: 1.0,

		RollWeight:              0.0,
		YawWeight:                0.0,
		InitialCameraConstraint: false,

		AnchorWeight: 0.0,

		ParameterTolerance: 1e-12,
		NumIterations:      500,
	}
}

// RegisterFlags binds every option to a CLI flag on fs, seeded with Default()'s values.
func RegisterFlags(fs *flag.FlagSet) *Options {
	o := Default()
	fs.Float64Var(&o.MaxInitReprojError, "max-initial-reprojection-error", o.MaxInitReprojError, "initial outlier gate and coupling line buffer, in pixels")
	fs.Float64Var(&o.RobustThreshold, "robust-threshold", o.RobustThreshold, "Cauchy threshold for reprojection residuals")
	fs.Float64Var(&o.TriWeight, "tri-weight", o.TriWeight, "triangulation prior weight")
	fs.Float64Var(&o.TriRobustThreshold, "tri-robust-threshold", o.TriRobustThreshold, "Cauchy threshold for the triangulation prior")
	fs.Float64Var(&o.HeightsFromDemUncertainty, "heights-from-dem-uncertainty", o.HeightsFromDemUncertainty, "DEM constraint sigma, in meters")
	fs.Float64Var(&o.HeightsFromDemRobustThreshold, "heights-from-dem-robust-threshold", o.HeightsFromDemRobustThreshold, "Cauchy threshold for the DEM constraint")
	fs.Float64Var(&o.CameraPositionWeight, "camera-position-weight", o.CameraPositionWeight, "aggregated camera-position prior weight")
	fs.Float64Var(&o.CameraPositionRobustThreshold, "camera-position-robust-threshold", o.CameraPositionRobustThreshold, "Cauchy threshold for the camera-position prior")
	fs.Float64Var(&o.RotationWeight, "rotation-weight", o.RotationWeight, "quaternion rotation prior weight")
	fs.Float64Var(&o.QuatNormWeight, "quat-norm-weight", o.QuatNormWeight, "quaternion unit-norm prior weight")
	fs.Float64Var(&o.RollWeight, "roll-weight", o.RollWeight, "roll-vs-along-track prior weight")
	fs.Float64Var(&o.YawWeight, "yaw-weight", o.YawWeight, "yaw-vs-along-track prior weight")
	fs.BoolVar(&o.InitialCameraConstraint, "initial-camera-constraint", o.InitialCameraConstraint, "experimental relative-to-initial roll/yaw mode")
	fs.IntVar(&o.NumAnchorPointsPerImage, "num-anchor-points-per-image", o.NumAnchorPointsPerImage, "anchor points synthesized per image")
	fs.IntVar(&o.NumAnchorPointsPerTile, "num-anchor-points-per-tile", o.NumAnchorPointsPerTile, "anchor points per DEM tile (parsed but not read by anchor synthesis)")
	fs.Float64Var(&o.NumAnchorPointsExtraLines, "num-anchor-points-extra-lines", o.NumAnchorPointsExtraLines, "extra lines allowed outside the pose-table time range for anchor synthesis")
	fs.Float64Var(&o.AnchorWeight, "anchor-weight", o.AnchorWeight, "anchor observation weight multiplier")
	fs.IntVar(&o.NumLinesPerPosition, "num-lines-per-position", o.NumLinesPerPosition, "position table resampling stride, in lines (parsed but not applied; the driver does not resample)")
	fs.IntVar(&o.NumLinesPerOrientation, "num-lines-per-orientation", o.NumLinesPerOrientation, "orientation table resampling stride, in lines (parsed but not applied; the driver does not resample)")
	fs.Float64Var(&o.ParameterTolerance, "parameter-tolerance", o.ParameterTolerance, "solver parameter tolerance (passed to nlsq but not used by its LM backend)")
	fs.IntVar(&o.NumIterations, "num-iterations", o.NumIterations, "solver max iterations")
	return &o
}
