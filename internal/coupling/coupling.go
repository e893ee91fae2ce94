// Package coupling computes which pose-table samples a given observation's residual must be
// wired to.
package coupling

import (
	"math"

	"github.com/pkg/errors"

	"jittersolve/internal/geom"
)

// ErrIndexing is returned when a coupling window collapses to empty, which indicates an
// image/camera ordering bug rather than a data-quality problem.
var ErrIndexing = errors.New("coupling: image/camera order mismatch")

// Window is a half-open [Beg, End) range of pose-sample indices a residual reads.
type Window struct {
	Beg, End int
}

// Width reports the number of samples in the window.
func (w Window) Width() int {
	return w.End - w.Beg
}

// CalcIndexBounds computes the half-open sample-index window covering times t1 and t2 on a
// uniform grid (t0, dt), widened by the Lagrange half-stencil so that interpolation anywhere in
// [t1, t2] has all the samples it needs. The widening is intentionally asymmetric
// (-numInterp/2+1 on the low side, +numInterp/2+1 on the high side): preserved exactly as
// inherited from the camera model this was grounded on, not symmetrized.
func CalcIndexBounds(t1, t2, t0, dt float64, numSamples int) (Window, error) {
	i1 := int(math.Floor((t1 - t0) / dt))
	i2 := int(math.Floor((t2 - t0) / dt))
	lo, hi := i1, i2
	if hi < lo {
		lo, hi = hi, lo
	}
	// Asymmetric widening: -numInterpSamples/2+1 on the low side, +numInterpSamples/2+1 on the
	// high side. For the 8-sample stencil that is -3 / +5, not a symmetric +/-4.
	beg := lo - (geom.NumInterpSamples/2 - 1)
	end := hi + (geom.NumInterpSamples/2 + 1)
	if beg < 0 {
		beg = 0
	}
	if end > numSamples {
		end = numSamples
	}
	if beg >= end {
		return Window{}, errors.Wrapf(ErrIndexing, "beg=%d end=%d numSamples=%d", beg, end, numSamples)
	}
	return Window{Beg: beg, End: end}, nil
}
