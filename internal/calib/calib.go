// Package calib implements the constraint calibrator: per-camera aggregate statistics used to
// scale the camera-position prior so it does not drown out image evidence.
package calib

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Pass distinguishes anchor from non-anchor observation weight collection, since the two
// populations are aggregated separately.
type Pass int

const (
	NonAnchor Pass = iota
	AnchorPass
)

type key struct {
	camera int
	pass   Pass
}

// Calibrator accumulates per-camera, per-pass observation weights during reprojection wiring and
// reduces them to a destructive median plus count on demand.
type Calibrator struct {
	weights map[key][]float64
}

// NewCalibrator creates an empty calibrator.
func NewCalibrator() *Calibrator {
	return &Calibrator{weights: make(map[key][]float64)}
}

// Collect records one observation's weight against its camera and pass.
func (c *Calibrator) Collect(camera int, pass Pass, weight float64) {
	k := key{camera, pass}
	c.weights[k] = append(c.weights[k], weight)
}

// Stats is the count and median weight collected for one camera/pass pair.
type Stats struct {
	Count  int
	Median float64
}

// Stats reduces the collected weights for (camera, pass) via a destructive median: the backing
// slice is sorted in place, which is fine since nothing else reads it afterward.
func (c *Calibrator) Stats(camera int, pass Pass) Stats {
	k := key{camera, pass}
	w := c.weights[k]
	if len(w) == 0 {
		return Stats{}
	}
	sort.Float64s(w)
	return Stats{Count: len(w), Median: destructiveMedianOf(w)}
}

func destructiveMedianOf(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// CombinedWeight applies the aggregation rule: n identical residuals with weight w behave like
// one residual with weight sqrt(n)*w under least squares.
func CombinedWeight(s Stats) float64 {
	if s.Count == 0 {
		return 0
	}
	return math.Sqrt(float64(s.Count)) * s.Median
}

// PositionScatter reports the diagonal (per-axis variance) of the collected positions observed
// for a camera, used to sanity-check the position prior's implied uncertainty against the data
// it is meant to summarize.
func PositionScatter(positions []r3.Vector) r3.Vector {
	if len(positions) == 0 {
		return r3.Vector{}
	}
	xs := make([]float64, len(positions))
	ys := make([]float64, len(positions))
	zs := make([]float64, len(positions))
	for i, p := range positions {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	weights := onesVec(len(positions))
	return r3.Vector{
		X: stat.Variance(xs, weights),
		Y: stat.Variance(ys, weights),
		Z: stat.Variance(zs, weights),
	}
}

func onesVec(n int) []float64 {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 1)
	}
	return v.RawVector().Data
}

// GSD estimates the ground sample distance implied by a camera observing point at xyz from
// camOrigin with the given focal length, via the small-triangle similar-angles approximation:
// one pixel subtends gsd = range / focal meters on the ground.
func GSD(camOrigin, xyz r3.Vector, focal float64) float64 {
	if focal <= 0 {
		return 0
	}
	rng := xyz.Sub(camOrigin).Norm()
	return rng / focal
}
