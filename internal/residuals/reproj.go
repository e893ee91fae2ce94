// Package residuals builds the six cost-function families the jitter solve wires into the
// nlsq problem: linescan and frame reprojection, DEM height constraint, triangulation prior,
// aggregated camera-position prior, and rotation/quaternion-norm/roll-yaw priors.
package residuals

import (
	"github.com/golang/geo/r3"

	"jittersolve/internal/coupling"
	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
	"jittersolve/internal/paramstore"
	"jittersolve/internal/rig"
	"jittersolve/internal/sensor"
)

// bigPixelValue is the sentinel magnitude substituted for a reprojection residual when
// projection fails, so one pathological point cannot poison the whole evaluation.
const bigPixelValue = 1000.0

// LinescanReprojection builds the two-component (x, y) pixel residual for a single observation
// on a linescan sensor. posBlock and quatBlock back the camera's *entire* pose tables, flattened
// — the aliased-ownership contract this repository inherited means a linescan sensor's table is
// the parameter block, not a per-observation copy of it. The cost closure value-copies the
// sensor, overwrites only the coupled window from the live blocks, and projects through the
// copy, so it never mutates the shared sensor directly.
func LinescanReprojection(base *sensor.Linescan, obs model.Observation, point *model.TriangulatedPoint, posBlock, quatBlock *paramstore.Block, posWindow, quatWindow coupling.Window) nlsq.CostFunction {
	return func() ([]float64, error) {
		cp := base.DeepCopy().(*sensor.Linescan)
		writeWindow(cp.Positions, posWindow, posBlock.Values(), 3)
		writeQuatWindow(cp.Quaternions, quatWindow, quatBlock.Values())

		pix, err := cp.GroundToImage(point.XYZ, sensor.DesiredPrecision)
		if err != nil {
			return []float64{obs.Weight * bigPixelValue, obs.Weight * bigPixelValue}, nil
		}
		return []float64{
			obs.Weight * (pix.X - obs.Pixel.X),
			obs.Weight * (pix.Y - obs.Pixel.Y),
		}, nil
	}
}

// FrameReprojection builds the two-component pixel residual for an observation on a frame
// sensor, reading its packed position/quaternion parameter blocks directly (frame sensors have
// exactly one pose sample, so no window is needed).
func FrameReprojection(base *sensor.Frame, obs model.Observation, point *model.TriangulatedPoint, posBlock, quatBlock *paramstore.Block) nlsq.CostFunction {
	return func() ([]float64, error) {
		cp := *base
		v := posBlock.Values()
		q := quatBlock.Values()
		cp.Position = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
		cp.Quaternion = model.Quaternion{X: q[0], Y: q[1], Z: q[2], W: q[3]}

		pix, err := cp.GroundToImage(point.XYZ, sensor.DesiredPrecision)
		if err != nil {
			return []float64{obs.Weight * bigPixelValue, obs.Weight * bigPixelValue}, nil
		}
		return []float64{
			obs.Weight * (pix.X - obs.Pixel.X),
			obs.Weight * (pix.Y - obs.Pixel.Y),
		}, nil
	}
}

// RigReprojection builds the pixel residual for a frame sensor rigidly mounted on a linescan
// reference sensor: the child's world pose is recomputed every evaluation from the reference
// sensor's coupled pose window composed with the rig's ref->child transform, rather than read from
// an independent pose block. This is what replaces the plain reprojection residual on non-reference
// sensors when a rig bridge is active.
func RigReprojection(ref *sensor.Linescan, obs model.Observation, point *model.TriangulatedPoint, refPosBlock, refQuatBlock, rigBlock *paramstore.Block, refPosWindow, refQuatWindow coupling.Window, captureTime float64, childFocal float64, childPrincipalPt r3.Vector, childCols, childRows int) nlsq.CostFunction {
	return func() ([]float64, error) {
		cp := ref.DeepCopy().(*sensor.Linescan)
		writeWindow(cp.Positions, refPosWindow, refPosBlock.Values(), 3)
		writeQuatWindow(cp.Quaternions, refQuatWindow, refQuatBlock.Values())

		rv := rigBlock.Values()
		transform := &model.RigTransform{
			AxisAngle:   r3.Vector{X: rv[0], Y: rv[1], Z: rv[2]},
			Translation: r3.Vector{X: rv[3], Y: rv[4], Z: rv[5]},
		}
		pos, quat, err := rig.WorldFromChild(cp, [2]int{refPosWindow.Beg}, [2]int{refQuatWindow.Beg}, captureTime, transform)
		if err != nil {
			return []float64{obs.Weight * bigPixelValue, obs.Weight * bigPixelValue}, nil
		}

		child := &sensor.Frame{
			Rows_: childRows, Cols_: childCols, Focal: childFocal, PrincipalPt: childPrincipalPt,
			Position: pos, Quaternion: quat,
		}
		pix, err := child.GroundToImage(point.XYZ, sensor.DesiredPrecision)
		if err != nil {
			return []float64{obs.Weight * bigPixelValue, obs.Weight * bigPixelValue}, nil
		}
		return []float64{
			obs.Weight * (pix.X - obs.Pixel.X),
			obs.Weight * (pix.Y - obs.Pixel.Y),
		}, nil
	}
}

// writeWindow overwrites dst[w.Beg:w.End] from the corresponding absolute slice of a flattened
// whole-table parameter block with componentsPerSample scalars per sample.
func writeWindow(dst []r3.Vector, w coupling.Window, flat []float64, componentsPerSample int) {
	for i := w.Beg; i < w.End; i++ {
		base := i * componentsPerSample
		dst[i] = r3.Vector{X: flat[base], Y: flat[base+1], Z: flat[base+2]}
	}
}

func writeQuatWindow(dst []model.Quaternion, w coupling.Window, flat []float64) {
	for i := w.Beg; i < w.End; i++ {
		base := i * 4
		dst[i] = model.Quaternion{X: flat[base], Y: flat[base+1], Z: flat[base+2], W: flat[base+3]}
	}
}

// FlattenPositions and FlattenQuaternions flatten an entire pose table into the form a
// parameter block expects; the driver calls these once per sensor at ADAPT time.
func FlattenPositions(v []r3.Vector) []float64 {
	out := make([]float64, 0, 3*len(v))
	for _, p := range v {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func FlattenQuaternions(v []model.Quaternion) []float64 {
	out := make([]float64, 0, 4*len(v))
	for _, q := range v {
		out = append(out, q.X, q.Y, q.Z, q.W)
	}
	return out
}
