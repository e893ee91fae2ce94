// Package dem provides a minimal in-memory grid DEM contract: bilinear height interpolation and
// a Newton-iteration camera-pixel-to-ground-point intersection. Production raster access,
// tiling and caching are out of scope for this module; this is sufficient to drive every
// documented scenario end to end.
package dem

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ErrOffGrid is returned when a sample falls outside the grid's extent.
var ErrOffGrid = errors.New("dem: sample outside grid extent")

// Interpolator is a uniform-grid height field indexed by (lon, lat).
type Interpolator struct {
	LonMin, LonStep float64
	LatMin, LatStep float64
	Cols, Rows      int
	Heights         []float64 // row-major, length Rows*Cols
}

// Sample bilinearly interpolates the height at (lon, lat).
func (d *Interpolator) Sample(lon, lat float64) (float64, error) {
	fx := (lon - d.LonMin) / d.LonStep
	fy := (lat - d.LatMin) / d.LatStep
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	if x0 < 0 || y0 < 0 || x0+1 >= d.Cols || y0+1 >= d.Rows {
		return 0, errors.WithStack(ErrOffGrid)
	}
	tx, ty := fx-float64(x0), fy-float64(y0)
	h00 := d.at(x0, y0)
	h10 := d.at(x0+1, y0)
	h01 := d.at(x0, y0+1)
	h11 := d.at(x0+1, y0+1)
	return (1-tx)*(1-ty)*h00 + tx*(1-ty)*h10 + (1-tx)*ty*h01 + tx*ty*h11, nil
}

func (d *Interpolator) at(x, y int) float64 {
	return d.Heights[y*d.Cols+x]
}

// LonLatOf projects an ECEF point to a spherical (lon, lat) pair for grid lookup, using a
// simple spherical Earth model consistent with the synthetic scenarios this module is tested
// against; a production implementation would use an ellipsoidal datum.
func LonLatOf(xyz r3.Vector) (lon, lat float64) {
	lon = math.Atan2(xyz.Y, xyz.X) * 180 / math.Pi
	r := math.Sqrt(xyz.X*xyz.X + xyz.Y*xyz.Y)
	lat = math.Atan2(xyz.Z, r) * 180 / math.Pi
	return
}

// XYZOfLonLatHeight is the inverse of LonLatOf given an ellipsoid radius at that height.
func XYZOfLonLatHeight(lon, lat, height, earthRadius float64) r3.Vector {
	rad := math.Pi / 180
	r := earthRadius + height
	lonR, latR := lon*rad, lat*rad
	return r3.Vector{
		X: r * math.Cos(latR) * math.Cos(lonR),
		Y: r * math.Cos(latR) * math.Sin(lonR),
		Z: r * math.Sin(latR),
	}
}

// CameraPixelToDEM intersects the ray from camera through pixel with the DEM surface, using
// Newton iteration on the implied height. maxIter and heightTol match the camera model this
// intersection was grounded on (50 iterations, 1mm height tolerance).
func CameraPixelToDEM(d *Interpolator, rayOrigin, rayDir r3.Vector, earthRadius float64) (r3.Vector, error) {
	const maxIter = 50
	const heightTol = 0.001

	height := 0.0
	for iter := 0; iter < maxIter; iter++ {
		r := earthRadius + height
		t, ok := intersectSphere(rayOrigin, rayDir, r)
		if !ok {
			return r3.Vector{}, errors.New("dem: ray does not intersect reference sphere")
		}
		pt := rayOrigin.Add(rayDir.Mul(t))
		lon, lat := LonLatOf(pt)
		h, err := d.Sample(lon, lat)
		if err != nil {
			return r3.Vector{}, err
		}
		if math.Abs(h-height) < heightTol {
			return pt, nil
		}
		height = h
	}
	return r3.Vector{}, errors.New("dem: newton iteration did not converge")
}

func intersectSphere(origin, dir r3.Vector, radius float64) (float64, bool) {
	dir = dir.Normalize()
	b := 2 * origin.Dot(dir)
	c := origin.Dot(origin) - radius*radius
	disc := b*b - 4*c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t1 := (-b - sq) / 2
	t2 := (-b + sq) / 2
	if t1 > 0 {
		return t1, true
	}
	if t2 > 0 {
		return t2, true
	}
	return 0, false
}
