package residuals

import (
	"github.com/golang/geo/r3"

	"jittersolve/internal/geom"
	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
	"jittersolve/internal/paramstore"
)

// DemConstraint builds the three-component residual pulling a triangulated point toward its
// DEM-sampled height, weighted by 1/sigma_dem.
func DemConstraint(pointBlock *paramstore.Block, demXYZ r3.Vector, sigmaDem float64) nlsq.CostFunction {
	w := 1.0
	if sigmaDem > 0 {
		w = 1.0 / sigmaDem
	}
	return func() ([]float64, error) {
		v := pointBlock.Values()
		return []float64{
			w * (v[0] - demXYZ.X),
			w * (v[1] - demXYZ.Y),
			w * (v[2] - demXYZ.Z),
		}, nil
	}
}

// TriangulationPrior builds the residual pulling a free point toward its initial triangulated
// position, scaled by the triangulation weight divided by ground sample distance so the prior
// carries a pixel-equivalent meaning.
func TriangulationPrior(pointBlock *paramstore.Block, initial r3.Vector, triWeight, gsd float64) nlsq.CostFunction {
	w := triWeight
	if gsd > 0 {
		w = triWeight / gsd
	}
	return func() ([]float64, error) {
		v := pointBlock.Values()
		return []float64{
			w * (v[0] - initial.X),
			w * (v[1] - initial.Y),
			w * (v[2] - initial.Z),
		}, nil
	}
}

// CameraPositionPrior builds the aggregated (combined-weight) residual pulling a position
// sample toward its initial value. Used for frame cameras, whose position block backs exactly
// one sample; for a linescan camera's whole-table block use CameraPositionPriorIndexed instead,
// with the combined weight divided across samples per the aggregation rule.
func CameraPositionPrior(posBlock *paramstore.Block, initial r3.Vector, combinedWeight float64) nlsq.CostFunction {
	return func() ([]float64, error) {
		v := posBlock.Values()
		return []float64{
			combinedWeight * (v[0] - initial.X),
			combinedWeight * (v[1] - initial.Y),
			combinedWeight * (v[2] - initial.Z),
		}, nil
	}
}

// CameraPositionPriorIndexed is CameraPositionPrior for a linescan sensor's whole-table position
// block: index selects which position sample the residual reads, and weight is the caller's
// already-distributed per-sample share of the camera's combined weight.
func CameraPositionPriorIndexed(posBlock *paramstore.Block, index int, initial r3.Vector, weight float64) nlsq.CostFunction {
	base := index * 3
	return func() ([]float64, error) {
		v := posBlock.Values()
		return []float64{
			weight * (v[base] - initial.X),
			weight * (v[base+1] - initial.Y),
			weight * (v[base+2] - initial.Z),
		}, nil
	}
}

// RotationPrior builds the four-component residual pulling a quaternion sample toward its
// initial value; never robustified, since quaternion outliers are not a modeled phenomenon. Used
// for frame cameras; for a linescan sensor's whole-table block use RotationPriorIndexed instead.
func RotationPrior(quatBlock *paramstore.Block, initial model.Quaternion, weight float64) nlsq.CostFunction {
	return func() ([]float64, error) {
		v := quatBlock.Values()
		return []float64{
			weight * (v[0] - initial.X),
			weight * (v[1] - initial.Y),
			weight * (v[2] - initial.Z),
			weight * (v[3] - initial.W),
		}, nil
	}
}

// RotationPriorIndexed is RotationPrior for a linescan sensor's whole-table quaternion block:
// index selects which quaternion sample the residual reads.
func RotationPriorIndexed(quatBlock *paramstore.Block, index int, initial model.Quaternion, weight float64) nlsq.CostFunction {
	base := index * 4
	return func() ([]float64, error) {
		v := quatBlock.Values()
		return []float64{
			weight * (v[base] - initial.X),
			weight * (v[base+1] - initial.Y),
			weight * (v[base+2] - initial.Z),
			weight * (v[base+3] - initial.W),
		}, nil
	}
}

// QuatNormPrior builds the scalar residual pulling ||q||^2 toward 1. Used for frame cameras; for
// a linescan sensor's whole-table block use QuatNormPriorIndexed instead.
func QuatNormPrior(quatBlock *paramstore.Block, weight float64) nlsq.CostFunction {
	return func() ([]float64, error) {
		v := quatBlock.Values()
		n2 := v[0]*v[0] + v[1]*v[1] + v[2]*v[2] + v[3]*v[3]
		return []float64{weight * (n2 - 1)}, nil
	}
}

// QuatNormPriorIndexed is QuatNormPrior for a linescan sensor's whole-table quaternion block:
// index selects which quaternion sample the residual reads.
func QuatNormPriorIndexed(quatBlock *paramstore.Block, index int, weight float64) nlsq.CostFunction {
	base := index * 4
	return func() ([]float64, error) {
		v := quatBlock.Values()
		n2 := v[base]*v[base] + v[base+1]*v[base+1] + v[base+2]*v[base+2] + v[base+3]*v[base+3]
		return []float64{weight * (n2 - 1)}, nil
	}
}

// RollYawConfig controls the optional roll/yaw-vs-along-track constraint.
type RollYawConfig struct {
	RollWeight              float64
	YawWeight               float64
	InitialCameraConstraint bool // the experimental "relative-to-initial" mode; swaps roll/pitch.
}

// RollYawPrior builds the two-component (roll, yaw) residual comparing a quaternion sample's
// attitude against the along/across/down triad derived from its position neighborhood. Returns
// nil if fewer than two position neighbors are available (the neighborhood is degenerate), in
// which case the caller should skip registration for this sample. quatBlock must back exactly one
// quaternion sample (a frame sensor's own block); for a linescan sensor's whole-table block use
// RollYawPriorIndexed instead.
func RollYawPrior(quatBlock *paramstore.Block, prev, cur, next r3.Vector, hasPrev, hasNext bool, cfg RollYawConfig) nlsq.CostFunction {
	if !hasPrev || !hasNext {
		return nil
	}
	triad := geom.BuildTriad(prev, cur, next)
	return func() ([]float64, error) {
		v := quatBlock.Values()
		q := model.Quaternion{X: v[0], Y: v[1], Z: v[2], W: v[3]}
		return rollYawResidual(q, triad, cfg), nil
	}
}

// RollYawPriorIndexed is RollYawPrior for a linescan sensor's whole-table quaternion block: index
// selects which quaternion sample in the flattened table the residual reads.
func RollYawPriorIndexed(quatBlock *paramstore.Block, index int, prev, cur, next r3.Vector, hasPrev, hasNext bool, cfg RollYawConfig) nlsq.CostFunction {
	if !hasPrev || !hasNext {
		return nil
	}
	triad := geom.BuildTriad(prev, cur, next)
	base := index * 4
	return func() ([]float64, error) {
		v := quatBlock.Values()
		q := model.Quaternion{X: v[base], Y: v[base+1], Z: v[base+2], W: v[base+3]}
		return rollYawResidual(q, triad, cfg), nil
	}
}

func rollYawResidual(q model.Quaternion, triad geom.Triad, cfg RollYawConfig) []float64 {
	cam2World := geom.RotationMatrix(q)
	roll, pitch, yaw := geom.RollPitchYaw(cam2World, triad)
	if cfg.InitialCameraConstraint {
		roll, pitch = pitch, roll
	}
	return []float64{cfg.RollWeight * roll, cfg.YawWeight * yaw}
}
