package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// rotXY is the fixed 90-degree in-plane rotation between the satellite body frame and the
// along/across/down triad frame, matching the camera-to-world factorization this repository's
// roll/yaw constraint was grounded on.
var rotXY = [3][3]float64{
	{0, 1, 0},
	{-1, 0, 0},
	{0, 0, 1},
}

// Triad holds the along-track, across-track and down unit vectors at one pose sample, derived
// from a three-point neighborhood of the position trajectory.
type Triad struct {
	Along, Across, Down r3.Vector
}

// BuildTriad derives the along/across/down triad from three consecutive position samples.
// prev and next must be distinct from cur; callers skip samples with fewer than two neighbors.
func BuildTriad(prev, cur, next r3.Vector) Triad {
	along := next.Sub(prev).Normalize()
	// across is orthogonalized against along via a nominal "up" reference (prev->cur is not
	// reliable as a cross-track direction on its own at low sample density).
	upRef := cur.Normalize()
	across := along.Cross(upRef).Normalize()
	down := along.Cross(across).Normalize()
	return Triad{Along: along, Across: across, Down: down}
}

// Sat2World returns the satellite-body-to-world rotation matrix implied by a triad: columns are
// along, across, down.
func (t Triad) Sat2World() [3][3]float64 {
	return [3][3]float64{
		{t.Along.X, t.Across.X, t.Down.X},
		{t.Along.Y, t.Across.Y, t.Down.Y},
		{t.Along.Z, t.Across.Z, t.Down.Z},
	}
}

// wrap180 resolves the ±180 degree branch ambiguity in an Euler angle, returning the
// representative closest to zero.
func wrap180(deg float64) float64 {
	return deg - 180*math.Round(deg/180)
}

// RollPitchYaw extracts roll, pitch, yaw (degrees) from a camera-to-world rotation matrix,
// relative to the along/across/down triad at that sample. The ±180-degree branch is resolved
// toward the representative nearest zero, since camera attitude in this model is expected to
// stay close to nominal.
func RollPitchYaw(cam2World [3][3]float64, triad Triad) (roll, pitch, yaw float64) {
	sat2World := triad.Sat2World()
	rpy := MatMul(Transpose3(sat2World), cam2World)
	rpy = MatMul(rpy, Transpose3(rotXY))
	roll, pitch, yaw = rollPitchYawFromMatrix(rpy)
	return wrap180(roll), wrap180(pitch), wrap180(yaw)
}

// rollPitchYawFromMatrix decomposes a rotation matrix into roll (X), pitch (Y), yaw (Z) Euler
// angles in degrees, using the same axis convention as the along/across/down triad.
func rollPitchYawFromMatrix(m [3][3]float64) (roll, pitch, yaw float64) {
	pitch = math.Asin(clamp(-m[2][0], -1, 1))
	if math.Abs(m[2][0]) < 0.999999 {
		roll = math.Atan2(m[2][1], m[2][2])
		yaw = math.Atan2(m[1][0], m[0][0])
	} else {
		roll = math.Atan2(-m[1][2], m[1][1])
		yaw = 0
	}
	const deg = 180 / math.Pi
	return roll * deg, pitch * deg, yaw * deg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
