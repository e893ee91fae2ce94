// Package anchor synthesizes anchor tie points: synthetic, DEM-derived, constant observations
// that pin cameras near their initial attitude where image matches are sparse.
package anchor

import (
	"math"

	"github.com/golang/geo/r3"

	"jittersolve/internal/dem"
	"jittersolve/internal/geom"
	"jittersolve/internal/model"
	"jittersolve/internal/sensor"
)

// Config controls how densely anchors are generated and how hits are validated.
type Config struct {
	NumAnchorPoints int
	ExtraLines      float64
	Weight          float64
	EarthRadius     float64
	// WeightImage optionally scales each anchor's weight by a per-pixel value; nil means every
	// hit gets weight Config.Weight. A non-positive or NaN sample rejects the hit.
	WeightImage func(pixel r3.Vector) float64
}

// Hit is one synthesized anchor: a constant ground point plus the observation pinning it.
type Hit struct {
	Point       model.TriangulatedPoint
	Observation model.Observation
}

// Synthesize tiles the sensor's image into roughly binLen x binLen cells and ray-casts each
// cell center through the camera into the DEM, keeping a hit only if it reprojects back to the
// cell center within reprojTol and its implied capture time lies inside the pose-table range.
func Synthesize(cfg Config, cameraIndex int, s sensor.Sensor, d *dem.Interpolator, nextPointID func() int) []Hit {
	rows, cols := s.Rows(), s.Cols()
	if cfg.NumAnchorPoints <= 0 || rows == 0 || cols == 0 {
		return nil
	}
	binLen := int(math.Sqrt(float64(rows*cols) / float64(cfg.NumAnchorPoints)))
	if binLen < 1 {
		binLen = 1
	}

	const reprojTolMultiplier = 10
	const heightTol = 0.001

	var hits []Hit
	for row := binLen / 2; row < rows; row += binLen {
		for col := binLen / 2; col < cols; col += binLen {
			cell := r3.Vector{X: float64(col), Y: float64(row)}

			t := s.GetImageTime(float64(row))
			if !withinRange(s, t, cfg.ExtraLines) {
				continue
			}
			if l, ok := s.(*sensor.Linescan); ok {
				lastPos := l.T0Pos + float64(len(l.Positions)-1)*l.DtPos
				lastQuat := l.T0Quat + float64(len(l.Quaternions)-1)*l.DtQuat
				if t <= l.T0Pos || t >= lastPos || t <= l.T0Quat || t >= lastQuat {
					continue
				}
			}

			rayDir, rayOrigin, ok := approximateRay(s, cell)
			if !ok {
				continue
			}
			xyz, err := dem.CameraPixelToDEM(d, rayOrigin, rayDir, cfg.EarthRadius)
			if err != nil {
				continue
			}

			reproj, err := s.GroundToImage(xyz, sensor.DesiredPrecision)
			if err != nil {
				continue
			}
			if reproj.Sub(cell).Norm() > reprojTolMultiplier*heightTol {
				continue
			}

			weight := cfg.Weight
			if cfg.WeightImage != nil {
				w := cfg.WeightImage(cell)
				if w <= 0 || math.IsNaN(w) {
					continue
				}
				weight *= w
			}

			id := nextPointID()
			hits = append(hits, Hit{
				Point: model.TriangulatedPoint{ID: id, XYZ: xyz, Initial: xyz, Class: model.Anchor},
				Observation: model.Observation{
					CameraIndex: cameraIndex,
					PointIndex:  id,
					Pixel:       cell,
					Weight:      weight,
					IsAnchor:    true,
				},
			})
		}
	}
	return hits
}

func withinRange(s sensor.Sensor, t, extraLines float64) bool {
	lo := s.GetImageTime(-extraLines)
	hi := s.GetImageTime(float64(s.Rows()) + extraLines)
	if lo > hi {
		lo, hi = hi, lo
	}
	return t > lo && t < hi
}

// approximateRay derives a world-frame ray for a pixel from a linescan or frame sensor's current
// pose by inverting the pinhole model directly, selected by type assertion on the sensor. For a
// linescan sensor it uses the position and quaternion samples at or before the pixel's capture
// time, without interpolation. Any other sensor type reports ok=false.
func approximateRay(s sensor.Sensor, pixel r3.Vector) (dir, origin r3.Vector, ok bool) {
	switch sen := s.(type) {
	case *sensor.Linescan:
		t := sen.GetImageTime(pixel.Y)
		posIdx := int((t - sen.T0Pos) / sen.DtPos)
		beg := clampIndex(posIdx, len(sen.Positions))
		quatIdx := int((t - sen.T0Quat) / sen.DtQuat)
		qbeg := clampIndex(quatIdx, len(sen.Quaternions))
		pos := lerpVec(sen.Positions, beg)
		quat := sen.Quaternions[qbeg]
		return cameraRay(pos, quat, pixel, sen.Focal, sen.PrincipalPt, sen.Cols_, sen.Rows_)
	case *sensor.Frame:
		return cameraRay(sen.Position, sen.Quaternion, pixel, sen.Focal, sen.PrincipalPt, sen.Cols_, sen.Rows_)
	default:
		return r3.Vector{}, r3.Vector{}, false
	}
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}

func lerpVec(v []r3.Vector, idx int) r3.Vector {
	if idx < 0 || idx >= len(v) {
		return r3.Vector{}
	}
	return v[idx]
}

func cameraRay(pos r3.Vector, quat model.Quaternion, pixel r3.Vector, focal float64, pp r3.Vector, cols, rows int) (r3.Vector, r3.Vector, bool) {
	if focal == 0 {
		return r3.Vector{}, r3.Vector{}, false
	}
	camX := (pixel.X - pp.X - float64(cols)/2) / focal
	camY := (pixel.Y - pp.Y - float64(rows)/2) / focal
	dirCam := r3.Vector{X: camX, Y: camY, Z: 1}
	rot := geom.RotationMatrix(quat)
	dirWorld := geom.Apply3(rot, dirCam)
	return dirWorld, pos, true
}
