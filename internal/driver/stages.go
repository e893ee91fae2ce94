package driver

import (
	"context"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"jittersolve/internal/calib"
	"jittersolve/internal/logging"
	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
	"jittersolve/internal/paramstore"
	"jittersolve/internal/residuals"
	"jittersolve/internal/rig"
	"jittersolve/internal/sensor"
)

// blockIndex remembers the parameter-block names registered for each sensor and point, so later
// stages can look them up without re-deriving naming conventions.
type blockIndex struct {
	posName, quatName map[int]string
	pointName         map[int]string
}

func newBlockIndex() *blockIndex {
	return &blockIndex{
		posName:   make(map[int]string),
		quatName:  make(map[int]string),
		pointName: make(map[int]string),
	}
}

func (d *Driver) init(prob *Problem) error {
	if len(prob.Sensors) == 0 {
		return fmt.Errorf("driver: no sensors in problem")
	}
	return nil
}

// adapt registers every sensor's pose tables and every point's coordinates as parameter blocks.
func (d *Driver) adapt(problem *nlsq.Problem, prob *Problem, idx *blockIndex) error {
	for ci, s := range prob.Sensors {
		switch sen := s.(type) {
		case *sensor.Linescan:
			posName := fmt.Sprintf("cam%d_pos", ci)
			quatName := fmt.Sprintf("cam%d_quat", ci)
			problem.AddParameterBlock(posName, residuals.FlattenPositions(sen.Positions))
			problem.AddParameterBlock(quatName, residuals.FlattenQuaternions(sen.Quaternions))
			idx.posName[ci] = posName
			idx.quatName[ci] = quatName
		case *sensor.Frame:
			posName := fmt.Sprintf("cam%d_pos", ci)
			quatName := fmt.Sprintf("cam%d_quat", ci)
			problem.AddParameterBlock(posName, []float64{sen.Position.X, sen.Position.Y, sen.Position.Z})
			problem.AddParameterBlock(quatName, []float64{sen.Quaternion.X, sen.Quaternion.Y, sen.Quaternion.Z, sen.Quaternion.W})
			idx.posName[ci] = posName
			idx.quatName[ci] = quatName
			// A rig child's world pose is entirely determined by the reference sensor's pose table
			// plus the rig transform; its own pos/quat blocks are bookkeeping for commit only, not
			// free parameters the solver should perturb.
			if isRigChild(prob.Rig, ci) {
				problem.SetParameterBlockConstant(posName)
				problem.SetParameterBlockConstant(quatName)
			}
		}
	}
	for _, p := range prob.Points {
		name := fmt.Sprintf("pt%d", p.ID)
		problem.AddParameterBlock(name, []float64{p.XYZ.X, p.XYZ.Y, p.XYZ.Z})
		idx.pointName[p.ID] = name
		if p.Constant() {
			problem.SetParameterBlockConstant(name)
		}
	}
	if prob.Rig != nil {
		for child, t := range prob.Rig.Children {
			name := fmt.Sprintf("rig%d", child)
			problem.AddParameterBlock(name, []float64{t.AxisAngle.X, t.AxisAngle.Y, t.AxisAngle.Z, t.Translation.X, t.Translation.Y, t.Translation.Z})
		}
	}
	return nil
}

// wireReproj registers the reprojection residual for every non-outlier observation and collects
// per-camera weight statistics for the position prior.
func (d *Driver) wireReproj(problem *nlsq.Problem, prob *Problem, idx *blockIndex, cal *calib.Calibrator) error {
	for _, obs := range prob.Observations {
		if obs.Outlier {
			continue
		}
		point := findPoint(prob.Points, obs.PointIndex)
		if point == nil {
			continue
		}
		posBlock, ok1 := problem.Lookup(idx.posName[obs.CameraIndex])
		quatBlock, ok2 := problem.Lookup(idx.quatName[obs.CameraIndex])
		pointBlock, ok3 := problem.Lookup(idx.pointName[point.ID])
		if !ok1 || !ok2 || !ok3 {
			continue
		}

		pass := calib.NonAnchor
		if obs.IsAnchor {
			pass = calib.AnchorPass
		}
		cal.Collect(obs.CameraIndex, pass, obs.Weight)

		switch sen := prob.Sensors[obs.CameraIndex].(type) {
		case *sensor.Linescan:
			lineBuffer := d.opts.MaxInitReprojError + 5
			t1 := sen.GetImageTime(obs.Pixel.Y - lineBuffer)
			t2 := sen.GetImageTime(obs.Pixel.Y + lineBuffer)
			posWindow, err := sen.PositionWindow(t1, t2)
			if err != nil {
				return err
			}
			quatWindow, err := sen.QuatWindow(t1, t2)
			if err != nil {
				return err
			}
			cost := residuals.LinescanReprojection(sen, obs, point, posBlock, quatBlock, posWindow, quatWindow)
			loss := nlsq.Cauchy(d.opts.RobustThreshold)
			if err := problem.AddResidualBlock(cost, loss, posBlock, quatBlock, pointBlock); err != nil {
				return err
			}
		case *sensor.Frame:
			if prob.Rig != nil && !prob.Rig.IsReference(obs.CameraIndex) {
				if ok, err := d.wireRigReproj(problem, prob, idx, obs, point, sen, pointBlock); err != nil {
					return err
				} else if ok {
					continue
				}
			}
			cost := residuals.FrameReprojection(sen, obs, point, posBlock, quatBlock)
			loss := nlsq.Cauchy(d.opts.RobustThreshold)
			if err := problem.AddResidualBlock(cost, loss, posBlock, quatBlock, pointBlock); err != nil {
				return err
			}
		}
	}
	return nil
}

// wireRigReproj wires obs through the rig-composed residual when its camera is a registered rig
// child with a linescan reference sensor. It reports ok=false (and no error) when the rig has no
// transform for this camera or the reference sensor isn't a linescan, so the caller falls back to
// the plain frame reprojection.
func (d *Driver) wireRigReproj(problem *nlsq.Problem, prob *Problem, idx *blockIndex, obs model.Observation, point *model.TriangulatedPoint, sen *sensor.Frame, pointBlock *paramstore.Block) (bool, error) {
	if _, isChild := prob.Rig.Children[obs.CameraIndex]; !isChild {
		return false, nil
	}
	refIndex := prob.Rig.Reference
	refSen, ok := prob.Sensors[refIndex].(*sensor.Linescan)
	if !ok {
		return false, nil
	}
	refPosBlock, ok1 := problem.Lookup(idx.posName[refIndex])
	refQuatBlock, ok2 := problem.Lookup(idx.quatName[refIndex])
	rigBlock, ok3 := problem.Lookup(fmt.Sprintf("rig%d", obs.CameraIndex))
	if !ok1 || !ok2 || !ok3 {
		return false, nil
	}

	t := sen.CaptureTime
	posWindow, err := refSen.PositionWindow(t, t)
	if err != nil {
		return true, err
	}
	quatWindow, err := refSen.QuatWindow(t, t)
	if err != nil {
		return true, err
	}

	cost := residuals.RigReprojection(refSen, obs, point, refPosBlock, refQuatBlock, rigBlock, posWindow, quatWindow, t, sen.Focal, sen.PrincipalPt, sen.Cols_, sen.Rows_)
	loss := nlsq.Cauchy(d.opts.RobustThreshold)
	if err := problem.AddResidualBlock(cost, loss, refPosBlock, refQuatBlock, rigBlock, pointBlock); err != nil {
		return true, err
	}
	return true, nil
}

// wirePriors registers the DEM, triangulation, camera-position, rotation and quaternion-norm
// soft constraints, using the calibrator's aggregated statistics for the position prior. Camera-
// level families (position, rotation, quaternion-norm) are wired per quaternion/position sample
// across the whole table for linescan sensors, and once for frame sensors' single sample; the
// roll/yaw family is wired for linescan sensors only. A rig child's position, rotation and
// quaternion-norm priors are skipped since its pose is derived, not independent (spec: these
// families apply only to reference sensors in rig mode).
func (d *Driver) wirePriors(ctx context.Context, problem *nlsq.Problem, prob *Problem, idx *blockIndex, cal *calib.Calibrator) error {
	for _, p := range prob.Points {
		if p.Constant() {
			continue
		}
		pointBlock, ok := problem.Lookup(idx.pointName[p.ID])
		if !ok {
			continue
		}
		if p.Class == model.FromDEM {
			cost := residuals.DemConstraint(pointBlock, p.Initial, d.opts.HeightsFromDemUncertainty)
			loss := nlsq.Cauchy(d.opts.HeightsFromDemRobustThreshold)
			if err := problem.AddResidualBlock(cost, loss, pointBlock); err != nil {
				return err
			}
			continue
		}
		if d.opts.TriWeight > 0 {
			gsd := gsdForPoint(prob, p)
			if gsd <= 0 {
				continue
			}
			cost := residuals.TriangulationPrior(pointBlock, p.Initial, d.opts.TriWeight, gsd)
			loss := nlsq.Cauchy(d.opts.TriRobustThreshold)
			if err := problem.AddResidualBlock(cost, loss, pointBlock); err != nil {
				return err
			}
		}
	}

	if d.opts.CameraPositionWeight > 0 {
		for ci, s := range prob.Sensors {
			if isRigChild(prob.Rig, ci) {
				continue
			}
			stats := cal.Stats(ci, calib.NonAnchor)
			combined := calib.CombinedWeight(stats) * d.opts.CameraPositionWeight
			if combined <= 0 {
				continue
			}
			posBlock, ok := problem.Lookup(idx.posName[ci])
			if !ok {
				continue
			}
			switch sen := s.(type) {
			case *sensor.Frame:
				d.sanityCheckPositionPrior(ctx, ci, combined, []r3.Vector{sen.Position})
				cost := residuals.CameraPositionPrior(posBlock, sen.Position, combined)
				loss := nlsq.Cauchy(d.opts.CameraPositionRobustThreshold)
				if err := problem.AddResidualBlock(cost, loss, posBlock); err != nil {
					return err
				}
			case *sensor.Linescan:
				n := len(sen.Positions)
				if n == 0 {
					continue
				}
				d.sanityCheckPositionPrior(ctx, ci, combined, sen.Positions)
				// Aggregation rule distributed across the table: w~*sqrt(n_obs/N_pos), which is
				// the combined weight (already sqrt(n_obs)*w~) divided by sqrt(N_pos).
				perSample := combined / math.Sqrt(float64(n))
				loss := nlsq.Cauchy(d.opts.CameraPositionRobustThreshold)
				for i, pos := range sen.Positions {
					cost := residuals.CameraPositionPriorIndexed(posBlock, i, pos, perSample)
					if err := problem.AddResidualBlock(cost, loss, posBlock); err != nil {
						return err
					}
				}
			}
		}
	}

	if d.opts.RotationWeight > 0 || d.opts.QuatNormWeight > 0 {
		for ci, s := range prob.Sensors {
			if isRigChild(prob.Rig, ci) {
				continue
			}
			quatBlock, ok := problem.Lookup(idx.quatName[ci])
			if !ok {
				continue
			}
			switch sen := s.(type) {
			case *sensor.Frame:
				if d.opts.RotationWeight > 0 {
					cost := residuals.RotationPrior(quatBlock, sen.Quaternion, d.opts.RotationWeight)
					if err := problem.AddResidualBlock(cost, nil, quatBlock); err != nil {
						return err
					}
				}
				if d.opts.QuatNormWeight > 0 {
					cost := residuals.QuatNormPrior(quatBlock, d.opts.QuatNormWeight)
					if err := problem.AddResidualBlock(cost, nil, quatBlock); err != nil {
						return err
					}
				}
			case *sensor.Linescan:
				for i, q := range sen.Quaternions {
					if d.opts.RotationWeight > 0 {
						cost := residuals.RotationPriorIndexed(quatBlock, i, q, d.opts.RotationWeight)
						if err := problem.AddResidualBlock(cost, nil, quatBlock); err != nil {
							return err
						}
					}
					if d.opts.QuatNormWeight > 0 {
						cost := residuals.QuatNormPriorIndexed(quatBlock, i, d.opts.QuatNormWeight)
						if err := problem.AddResidualBlock(cost, nil, quatBlock); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	if d.opts.RollWeight > 0 || d.opts.YawWeight > 0 {
		if err := d.wireRollYaw(problem, prob, idx); err != nil {
			return err
		}
	}
	return nil
}

// sanityCheckPositionPrior compares the implied uncertainty of a camera-position prior weight
// against the scatter already present in the positions it is meant to summarize, warning when
// the prior is tighter than the data it is derived from — a sign the aggregation inputs (weight
// counts, GSD) may be miscalibrated for this camera.
func (d *Driver) sanityCheckPositionPrior(ctx context.Context, cameraIndex int, weight float64, positions []r3.Vector) {
	if weight <= 0 {
		return
	}
	scatter := calib.PositionScatter(positions)
	totalVariance := scatter.X + scatter.Y + scatter.Z
	impliedVariance := 1 / (weight * weight)
	if totalVariance > 0 && impliedVariance < totalVariance {
		d.log.Warn(ctx, "camera-position prior tighter than observed scatter",
			logging.Field{Key: "camera", Value: cameraIndex},
			logging.Field{Key: "implied_variance", Value: impliedVariance},
			logging.Field{Key: "observed_variance", Value: totalVariance},
		)
	}
}

// gsdForPoint estimates the ground sample distance a triangulation prior should divide by,
// averaging calib.GSD over every non-outlier observation of the point; a sample is dropped if its
// camera can't be resolved to an origin/focal pair. Returns 0 if no observation yields a usable
// estimate, signaling the caller to skip the prior for this point per the GSD failure semantics.
func gsdForPoint(prob *Problem, point *model.TriangulatedPoint) float64 {
	var sum float64
	var n int
	for _, obs := range prob.Observations {
		if obs.PointIndex != point.ID || obs.Outlier {
			continue
		}
		if obs.CameraIndex < 0 || obs.CameraIndex >= len(prob.Sensors) {
			continue
		}
		origin, focal, ok := cameraOriginAndFocal(prob.Sensors[obs.CameraIndex], obs.Pixel.Y)
		if !ok {
			continue
		}
		g := calib.GSD(origin, point.Initial, focal)
		if g > 0 {
			sum += g
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// cameraOriginAndFocal resolves the camera origin a GSD estimate should use: the position-table
// sample nearest the observed line's capture time for a linescan sensor (not interpolated), or
// the single pose for a frame sensor.
func cameraOriginAndFocal(s sensor.Sensor, line float64) (r3.Vector, float64, bool) {
	switch sen := s.(type) {
	case *sensor.Linescan:
		return positionAtTime(sen, sen.GetImageTime(line)), sen.Focal, true
	case *sensor.Frame:
		return sen.Position, sen.Focal, true
	default:
		return r3.Vector{}, 0, false
	}
}

// wireRollYaw registers the roll/yaw-vs-along-track prior for every interior sample of every
// linescan sensor's quaternion table; the two endpoint samples have no position neighborhood and
// are skipped.
func (d *Driver) wireRollYaw(problem *nlsq.Problem, prob *Problem, idx *blockIndex) error {
	cfg := residuals.RollYawConfig{
		RollWeight:              d.opts.RollWeight,
		YawWeight:               d.opts.YawWeight,
		InitialCameraConstraint: d.opts.InitialCameraConstraint,
	}
	for ci, s := range prob.Sensors {
		sen, ok := s.(*sensor.Linescan)
		if !ok {
			continue
		}
		quatBlock, ok := problem.Lookup(idx.quatName[ci])
		if !ok {
			continue
		}
		n := len(sen.Quaternions)
		for i := 0; i < n; i++ {
			t := sen.T0Quat + float64(i)*sen.DtQuat
			cur := positionAtTime(sen, t)
			hasPrev := i > 0
			hasNext := i < n-1
			var prev, next r3.Vector
			if hasPrev {
				prev = positionAtTime(sen, sen.T0Quat+float64(i-1)*sen.DtQuat)
			}
			if hasNext {
				next = positionAtTime(sen, sen.T0Quat+float64(i+1)*sen.DtQuat)
			}
			cost := residuals.RollYawPriorIndexed(quatBlock, i, prev, cur, next, hasPrev, hasNext, cfg)
			if cost == nil {
				continue
			}
			if err := problem.AddResidualBlock(cost, nil, quatBlock); err != nil {
				return err
			}
		}
	}
	return nil
}

// positionAtTime returns the nearest position-table sample to t, clamped to the table's range.
// A linescan's position and quaternion grids are not guaranteed to share a cadence, so the
// roll/yaw neighborhood is built from the closest position sample rather than requiring an exact
// index match.
func positionAtTime(sen *sensor.Linescan, t float64) r3.Vector {
	idx := int(math.Round((t - sen.T0Pos) / sen.DtPos))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sen.Positions) {
		idx = len(sen.Positions) - 1
	}
	return sen.Positions[idx]
}

// isRigChild reports whether sensorIndex is a registered rig child (never true for a nil rig or
// for the rig's own reference sensor).
func isRigChild(bridge *rig.Bridge, sensorIndex int) bool {
	if bridge == nil {
		return false
	}
	_, ok := bridge.Children[sensorIndex]
	return ok
}

// commitRigChild recomputes a rig child's final world pose from the reference sensor's solved
// pose table and the solved rig transform, writing it into sen in place.
func (d *Driver) commitRigChild(problem *nlsq.Problem, prob *Problem, idx *blockIndex, ci int, sen *sensor.Frame) {
	refIndex := prob.Rig.Reference
	refSen, ok := prob.Sensors[refIndex].(*sensor.Linescan)
	if !ok {
		return
	}
	rigBlock, ok := problem.Lookup(fmt.Sprintf("rig%d", ci))
	if !ok {
		return
	}
	rv := rigBlock.Values()
	transform := &model.RigTransform{
		AxisAngle:   r3.Vector{X: rv[0], Y: rv[1], Z: rv[2]},
		Translation: r3.Vector{X: rv[3], Y: rv[4], Z: rv[5]},
	}

	t := sen.CaptureTime
	posWindow, err := refSen.PositionWindow(t, t)
	if err != nil {
		return
	}
	quatWindow, err := refSen.QuatWindow(t, t)
	if err != nil {
		return
	}
	pos, quat, err := rig.WorldFromChild(refSen, [2]int{posWindow.Beg}, [2]int{quatWindow.Beg}, t, transform)
	if err != nil {
		return
	}
	sen.Position = pos
	sen.Quaternion = quat
}

// commit writes the solved parameter blocks back into the problem's sensors and points. A rig
// child's final pose is recomputed from the reference sensor's solved pose table composed with
// the solved rig transform, rather than read from its own (constant, unsolved) pos/quat blocks.
func (d *Driver) commit(problem *nlsq.Problem, prob *Problem, idx *blockIndex) {
	for ci, s := range prob.Sensors {
		switch sen := s.(type) {
		case *sensor.Linescan:
			if posBlock, ok := problem.Lookup(idx.posName[ci]); ok {
				unflattenPositions(sen.Positions, posBlock.Values())
			}
			if quatBlock, ok := problem.Lookup(idx.quatName[ci]); ok {
				unflattenQuaternions(sen.Quaternions, quatBlock.Values())
			}
		case *sensor.Frame:
			if isRigChild(prob.Rig, ci) {
				d.commitRigChild(problem, prob, idx, ci, sen)
				continue
			}
			if posBlock, ok := problem.Lookup(idx.posName[ci]); ok {
				v := posBlock.Values()
				sen.Position = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
			}
			if quatBlock, ok := problem.Lookup(idx.quatName[ci]); ok {
				v := quatBlock.Values()
				sen.Quaternion = model.Quaternion{X: v[0], Y: v[1], Z: v[2], W: v[3]}
			}
		}
	}
	for _, p := range prob.Points {
		if p.Constant() {
			continue
		}
		if block, ok := problem.Lookup(idx.pointName[p.ID]); ok {
			v := block.Values()
			p.XYZ = r3.Vector{X: v[0], Y: v[1], Z: v[2]}
		}
	}
}

func unflattenPositions(dst []r3.Vector, flat []float64) {
	for i := range dst {
		base := i * 3
		dst[i] = r3.Vector{X: flat[base], Y: flat[base+1], Z: flat[base+2]}
	}
}

func unflattenQuaternions(dst []model.Quaternion, flat []float64) {
	for i := range dst {
		base := i * 4
		dst[i] = model.Quaternion{X: flat[base], Y: flat[base+1], Z: flat[base+2], W: flat[base+3]}
	}
}

func findPoint(pts []*model.TriangulatedPoint, id int) *model.TriangulatedPoint {
	for _, p := range pts {
		if p.ID == id {
			return p
		}
	}
	return nil
}
