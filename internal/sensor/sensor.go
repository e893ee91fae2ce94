// Package sensor implements the linescan and frame camera contracts the rest of jitter-solve
// treats as black-box projectors over a mutable pose table.
package sensor

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"jittersolve/internal/coupling"
	"jittersolve/internal/geom"
	"jittersolve/internal/model"
)

// DesiredPrecision is the projection precision passed to groundToImage; lower precisions return
// meaningless output for this camera model.
const DesiredPrecision = 1e-8

// ErrProjection signals that a ground-to-image projection failed for this observation; it is
// recovered locally by the caller (sentinel residual or skipped contribution), never propagated.
var ErrProjection = errors.New("sensor: projection failed")

// Sensor is the capability contract the residual factory, rig bridge and coupling resolver
// consume. Both Linescan and Frame implement it; callers must not assume which.
type Sensor interface {
	Kind() model.SensorKind
	// GetImageTime returns the capture time of a given pixel row (frame sensors return a
	// constant).
	GetImageTime(line float64) float64
	// GroundToImage projects a 3D point into this sensor's image plane at the given precision.
	GroundToImage(xyz r3.Vector, precision float64) (r3.Vector, error)
	// DeepCopy returns a value copy safe to mutate without affecting the original, required
	// because linescan pose tables are aliased parameter blocks.
	DeepCopy() Sensor
	Rows() int
	Cols() int
}

// Linescan is a pushbroom camera: one position and one quaternion sample per scan line (on
// separate, possibly differently spaced, uniform time grids).
type Linescan struct {
	Rows_, Cols_ int
	Focal        float64
	PrincipalPt  r3.Vector // z unused

	T0Pos, DtPos float64
	Positions    []r3.Vector

	T0Quat, DtQuat float64
	Quaternions    []model.Quaternion
}

func (l *Linescan) Kind() model.SensorKind { return model.Linescan }
func (l *Linescan) Rows() int              { return l.Rows_ }
func (l *Linescan) Cols() int              { return l.Cols_ }

// GetImageTime returns the capture time of a given scan line, defined on the position grid.
func (l *Linescan) GetImageTime(line float64) float64 {
	return l.T0Pos + line*l.DtPos
}

// PositionWindow resolves the coupling window for a time range on the position grid.
func (l *Linescan) PositionWindow(t1, t2 float64) (coupling.Window, error) {
	return coupling.CalcIndexBounds(t1, t2, l.T0Pos, l.DtPos, len(l.Positions))
}

// QuatWindow resolves the coupling window for a time range on the quaternion grid.
func (l *Linescan) QuatWindow(t1, t2 float64) (coupling.Window, error) {
	return coupling.CalcIndexBounds(t1, t2, l.T0Quat, l.DtQuat, len(l.Quaternions))
}

// GroundToImage interpolates the pose at the point's expected capture time and projects xyz into
// the image plane via a pinhole model, iterating on the line estimate (up to 25 times) since
// capture time depends on the (unknown) line. precision bounds the line-estimate refinement step.
func (l *Linescan) GroundToImage(xyz r3.Vector, precision float64) (r3.Vector, error) {
	line := float64(l.Rows_) / 2
	for iter := 0; iter < 25; iter++ {
		t := l.GetImageTime(line)
		posIdx := int((t - l.T0Pos) / l.DtPos)
		quatIdx := int((t - l.T0Quat) / l.DtQuat)
		posBeg, posX, err := l.stencilIndex(posIdx, t, l.T0Pos, l.DtPos, len(l.Positions))
		if err != nil {
			return r3.Vector{}, err
		}
		quatBeg, quatX, err := l.stencilIndex(quatIdx, t, l.T0Quat, l.DtQuat, len(l.Quaternions))
		if err != nil {
			return r3.Vector{}, err
		}
		pos := geom.InterpolatePosition(l.Positions, posBeg, posX)
		quat := geom.InterpolateQuaternion(l.Quaternions, quatBeg, quatX)
		pix, newLine, ok := projectPinhole(xyz, pos, quat, l.Focal, l.PrincipalPt, l.Cols_, l.Rows_)
		if !ok {
			return r3.Vector{}, errors.WithStack(ErrProjection)
		}
		if abs(newLine-line) < precision {
			return pix, nil
		}
		line = newLine
	}
	return r3.Vector{}, errors.Wrap(ErrProjection, "line estimate did not converge")
}

func (l *Linescan) stencilIndex(idx int, t, t0, dt float64, n int) (beg int, x float64, err error) {
	beg = idx - (geom.NumInterpSamples/2 - 1)
	if beg < 0 {
		beg = 0
	}
	if beg+geom.NumInterpSamples > n {
		beg = n - geom.NumInterpSamples
	}
	if beg < 0 {
		return 0, 0, errors.WithStack(ErrProjection)
	}
	x = (t - t0) / dt
	return beg, x, nil
}

// DeepCopy returns a value copy of the sensor with independent backing slices, so a residual
// can overwrite a coupling window without mutating the shared parameter-store state.
func (l *Linescan) DeepCopy() Sensor {
	cp := *l
	cp.Positions = append([]r3.Vector(nil), l.Positions...)
	cp.Quaternions = append([]model.Quaternion(nil), l.Quaternions...)
	return &cp
}

// Frame is a framing camera: one position and one quaternion sample for the whole image.
type Frame struct {
	Rows_, Cols_ int
	Focal        float64
	PrincipalPt  r3.Vector
	CaptureTime  float64

	Position   r3.Vector
	Quaternion model.Quaternion
}

func (f *Frame) Kind() model.SensorKind       { return model.Frame }
func (f *Frame) Rows() int                    { return f.Rows_ }
func (f *Frame) Cols() int                    { return f.Cols_ }
func (f *Frame) GetImageTime(_ float64) float64 { return f.CaptureTime }

func (f *Frame) GroundToImage(xyz r3.Vector, _ float64) (r3.Vector, error) {
	pix, _, ok := projectPinhole(xyz, f.Position, f.Quaternion, f.Focal, f.PrincipalPt, f.Cols_, f.Rows_)
	if !ok {
		return r3.Vector{}, errors.WithStack(ErrProjection)
	}
	return pix, nil
}

func (f *Frame) DeepCopy() Sensor {
	cp := *f
	return &cp
}

// projectPinhole applies a pinhole projection model in the camera frame defined by pos/quat,
// returning the pixel, the implied row (line), and whether the point lies in front of the
// camera.
func projectPinhole(xyz, pos r3.Vector, quat model.Quaternion, focal float64, pp r3.Vector, cols, rows int) (r3.Vector, float64, bool) {
	rel := xyz.Sub(pos)
	rot := geom.RotationMatrix(quat)
	cam := geom.Apply3(geom.Transpose3(rot), rel)
	if cam.Z <= 0 {
		return r3.Vector{}, 0, false
	}
	px := focal*cam.X/cam.Z + pp.X + float64(cols)/2
	py := focal*cam.Y/cam.Z + pp.Y + float64(rows)/2
	return r3.Vector{X: px, Y: py}, py, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
