// Package geom provides the vector, quaternion and interpolation math the jitter-solve
// residuals and rig bridge are built on.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"jittersolve/internal/model"
)

// Norm returns the Euclidean norm of q.
func Norm(q model.Quaternion) float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns q scaled to unit norm. The zero quaternion is returned unchanged.
func Normalized(q model.Quaternion) model.Quaternion {
	n := Norm(q)
	if n == 0 {
		return q
	}
	return model.Quaternion{X: q.X / n, Y: q.Y / n, Z: q.Z / n, W: q.W / n}
}

// ToSpatial converts jitter-solve's (x,y,z,w) quaternion into spatialmath's (w,x,y,z) ordering.
func ToSpatial(q model.Quaternion) spatialmath.Quaternion {
	return spatialmath.Quaternion{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// FromSpatial converts a spatialmath quaternion back into jitter-solve's storage order.
func FromSpatial(q spatialmath.Quaternion) model.Quaternion {
	return model.Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real}
}

// RotationMatrix returns the 3x3 rotation matrix corresponding to q, row-major.
func RotationMatrix(q model.Quaternion) [3][3]float64 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// QuaternionFromMatrix recovers a unit quaternion from a rotation matrix via Shepperd's method.
func QuaternionFromMatrix(m [3][3]float64) model.Quaternion {
	tr := m[0][0] + m[1][1] + m[2][2]
	var q model.Quaternion
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1) * 2
		q.W = 0.25 * s
		q.X = (m[2][1] - m[1][2]) / s
		q.Y = (m[0][2] - m[2][0]) / s
		q.Z = (m[1][0] - m[0][1]) / s
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := math.Sqrt(1+m[0][0]-m[1][1]-m[2][2]) * 2
		q.W = (m[2][1] - m[1][2]) / s
		q.X = 0.25 * s
		q.Y = (m[0][1] + m[1][0]) / s
		q.Z = (m[0][2] + m[2][0]) / s
	case m[1][1] > m[2][2]:
		s := math.Sqrt(1+m[1][1]-m[0][0]-m[2][2]) * 2
		q.W = (m[0][2] - m[2][0]) / s
		q.X = (m[0][1] + m[1][0]) / s
		q.Y = 0.25 * s
		q.Z = (m[1][2] + m[2][1]) / s
	default:
		s := math.Sqrt(1+m[2][2]-m[0][0]-m[1][1]) * 2
		q.W = (m[1][0] - m[0][1]) / s
		q.X = (m[0][2] + m[2][0]) / s
		q.Y = (m[1][2] + m[2][1]) / s
		q.Z = 0.25 * s
	}
	return Normalized(q)
}

// MatMul multiplies two row-major 3x3 matrices.
func MatMul(a, b [3][3]float64) [3][3]float64 {
	var c [3][3]float64
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			var s float64
			for k := 0; k < 3; k++ {
				s += a[r][k] * b[k][col]
			}
			c[r][col] = s
		}
	}
	return c
}

// Transpose3 returns the transpose of a row-major 3x3 matrix (equal to its inverse for a
// rotation matrix).
func Transpose3(a [3][3]float64) [3][3]float64 {
	var t [3][3]float64
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			t[c][r] = a[r][c]
		}
	}
	return t
}

// Apply3 applies a row-major 3x3 matrix to a vector.
func Apply3(m [3][3]float64, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}
