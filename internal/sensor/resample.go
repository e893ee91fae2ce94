package sensor

import (
	"github.com/golang/geo/r3"

	"jittersolve/internal/geom"
	"jittersolve/internal/model"
)

// ResamplePositions rebuilds the position table on a coarser uniform grid with roughly
// linesPerSample scan lines between samples, reducing the parameter count a linescan camera
// contributes to the solve. Existing samples are Lagrange-interpolated onto the new grid.
func ResamplePositions(l *Linescan, linesPerSample int) {
	if linesPerSample <= 1 || len(l.Positions) < geom.NumInterpSamples {
		return
	}
	newDt := l.DtPos * float64(linesPerSample)
	n := len(l.Positions)
	span := float64(n-1) * l.DtPos
	count := int(span/newDt) + 1
	out := make([]r3.Vector, 0, count)
	for i := 0; i < count; i++ {
		t := l.T0Pos + float64(i)*newDt
		idx := int((t - l.T0Pos) / l.DtPos)
		beg := clampBeg(idx, n)
		x := (t - l.T0Pos) / l.DtPos
		out = append(out, geom.InterpolatePosition(l.Positions, beg, x))
	}
	l.Positions = out
	l.DtPos = newDt
}

// ResampleQuaternions is the quaternion analogue of ResamplePositions.
func ResampleQuaternions(l *Linescan, linesPerSample int) {
	if linesPerSample <= 1 || len(l.Quaternions) < geom.NumInterpSamples {
		return
	}
	newDt := l.DtQuat * float64(linesPerSample)
	n := len(l.Quaternions)
	span := float64(n-1) * l.DtQuat
	count := int(span/newDt) + 1
	out := make([]model.Quaternion, 0, count)
	for i := 0; i < count; i++ {
		t := l.T0Quat + float64(i)*newDt
		idx := int((t - l.T0Quat) / l.DtQuat)
		beg := clampBeg(idx, n)
		x := (t - l.T0Quat) / l.DtQuat
		out = append(out, geom.InterpolateQuaternion(l.Quaternions, beg, x))
	}
	l.Quaternions = out
	l.DtQuat = newDt
}

func clampBeg(idx, n int) int {
	beg := idx - (geom.NumInterpSamples/2 - 1)
	if beg < 0 {
		beg = 0
	}
	if beg+geom.NumInterpSamples > n {
		beg = n - geom.NumInterpSamples
	}
	if beg < 0 {
		beg = 0
	}
	return beg
}
