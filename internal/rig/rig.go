// Package rig composes a reference sensor's interpolated pose with a rigid ref->child transform,
// so multiple sensors on one platform can share one ground truth during the solve.
package rig

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"jittersolve/internal/geom"
	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

// Bridge holds the rigid transforms from a rig's reference sensor to each child sensor, keyed
// by child sensor index.
type Bridge struct {
	Reference int
	Children  map[int]*model.RigTransform
}

// NewBridge creates a rig bridge rooted at the given reference sensor index.
func NewBridge(reference int) *Bridge {
	return &Bridge{Reference: reference, Children: make(map[int]*model.RigTransform)}
}

// AddChild registers a child sensor with an initial ref->child transform.
func (b *Bridge) AddChild(index int, t *model.RigTransform) {
	b.Children[index] = t
}

// IsReference reports whether sensorIndex is this rig's reference sensor.
func (b *Bridge) IsReference(sensorIndex int) bool {
	return sensorIndex == b.Reference
}

// axisAngleToMatrix converts an axis-angle rotation vector (direction = axis, length = angle)
// into a row-major rotation matrix via Rodrigues' formula.
func axisAngleToMatrix(aa r3.Vector) [3][3]float64 {
	theta := aa.Norm()
	if theta == 0 {
		return identity3()
	}
	axis := aa.Mul(1 / theta)
	x, y, z := axis.X, axis.Y, axis.Z
	c, s := math.Cos(theta), math.Sin(theta)
	C := 1 - c
	return [3][3]float64{
		{c + x*x*C, x*y*C - z*s, x*z*C + y*s},
		{y*x*C + z*s, c + y*y*C, y*z*C - x*s},
		{z*x*C - y*s, z*y*C + x*s, c + z*z*C},
	}
}

func identity3() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// clampStencilBeg adjusts a coupling window's Beg so the 8-sample Lagrange stencil starting there
// never reads past the end of the table. CalcIndexBounds only clamps a window's End against the
// table length, not Beg+NumInterpSamples, so a window near the end of the table can still have a
// Beg too large to host a full stencil; sensor.go's own stencilIndex re-adjusts the same way.
func clampStencilBeg(beg, n int) (int, error) {
	if beg < 0 {
		beg = 0
	}
	if beg+geom.NumInterpSamples > n {
		beg = n - geom.NumInterpSamples
	}
	if beg < 0 {
		return 0, errors.New("rig: reference table shorter than the interpolation stencil")
	}
	return beg, nil
}

// WorldFromChild composes the reference sensor's world pose at time t with the ref->child
// transform, returning the child's position and orientation in the world frame.
func WorldFromChild(refSensor *sensor.Linescan, refWindowPos, refWindowQuat [2]int, t float64, transform *model.RigTransform) (r3.Vector, model.Quaternion, error) {
	posBeg, err := clampStencilBeg(refWindowPos[0], len(refSensor.Positions))
	if err != nil {
		return r3.Vector{}, model.Quaternion{}, err
	}
	quatBeg, err := clampStencilBeg(refWindowQuat[0], len(refSensor.Quaternions))
	if err != nil {
		return r3.Vector{}, model.Quaternion{}, err
	}
	posX := (t - refSensor.T0Pos) / refSensor.DtPos
	quatX := (t - refSensor.T0Quat) / refSensor.DtQuat

	refPos := geom.InterpolatePosition(refSensor.Positions, posBeg, posX)
	refQuat := geom.InterpolateQuaternion(refSensor.Quaternions, quatBeg, quatX)

	refRot := geom.RotationMatrix(refQuat)
	childRotRel := axisAngleToMatrix(transform.AxisAngle)

	worldRot := geom.MatMul(refRot, childRotRel)
	worldPos := refPos.Add(geom.Apply3(refRot, transform.Translation))

	return worldPos, geom.QuaternionFromMatrix(worldRot), nil
}
