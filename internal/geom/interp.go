package geom

import (
	"github.com/golang/geo/r3"

	"jittersolve/internal/model"
)

// NumInterpSamples is the order of the Lagrange stencil used to interpolate pose samples at an
// arbitrary time. Eight samples give cubic-like smoothness while keeping the coupling window
// bounded, matching the camera model this repository's residuals were grounded on.
const NumInterpSamples = 8

// LagrangeWeights returns the NumInterpSamples Lagrange basis weights for evaluating the
// interpolant at fractional sample index x, given integer sample indices beg..beg+7.
func LagrangeWeights(x float64, beg int) [NumInterpSamples]float64 {
	var w [NumInterpSamples]float64
	for i := 0; i < NumInterpSamples; i++ {
		xi := float64(beg + i)
		num, den := 1.0, 1.0
		for j := 0; j < NumInterpSamples; j++ {
			if j == i {
				continue
			}
			xj := float64(beg + j)
			num *= x - xj
			den *= xi - xj
		}
		w[i] = num / den
	}
	return w
}

// InterpolatePosition evaluates the Lagrange interpolant of pos[beg:beg+8] at fractional index x.
func InterpolatePosition(pos []r3.Vector, beg int, x float64) r3.Vector {
	w := LagrangeWeights(x, beg)
	var out r3.Vector
	for i, wi := range w {
		out = out.Add(pos[beg+i].Mul(wi))
	}
	return out
}

// InterpolateQuaternion evaluates the (unnormalized, then renormalized) Lagrange interpolant of
// quat[beg:beg+8] at fractional index x. Linear combination of quaternion components followed by
// renormalization is the standard cheap substitute for SLERP chains when samples are closely
// spaced, which holds for the dense pose tables this module consumes.
func InterpolateQuaternion(quat []model.Quaternion, beg int, x float64) model.Quaternion {
	w := LagrangeWeights(x, beg)
	var out model.Quaternion
	for i, wi := range w {
		q := quat[beg+i]
		out.X += wi * q.X
		out.Y += wi * q.Y
		out.Z += wi * q.Z
		out.W += wi * q.W
	}
	return Normalized(out)
}
