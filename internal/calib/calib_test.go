package calib

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestDestructiveMedianOddEven(t *testing.T) {
	c := NewCalibrator()
	for _, w := range []float64{3, 1, 2} {
		c.Collect(0, NonAnchor, w)
	}
	stats := c.Stats(0, NonAnchor)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 2.0, stats.Median)

	c2 := NewCalibrator()
	for _, w := range []float64{1, 2, 3, 4} {
		c2.Collect(1, NonAnchor, w)
	}
	stats2 := c2.Stats(1, NonAnchor)
	assert.Equal(t, 2.5, stats2.Median)
}

func TestAnchorAndNonAnchorPassesAreIndependent(t *testing.T) {
	c := NewCalibrator()
	c.Collect(0, NonAnchor, 10)
	c.Collect(0, AnchorPass, 0.1)
	assert.Equal(t, 10.0, c.Stats(0, NonAnchor).Median)
	assert.Equal(t, 0.1, c.Stats(0, AnchorPass).Median)
}

func TestCombinedWeightMatchesSqrtNRule(t *testing.T) {
	s := Stats{Count: 9, Median: 2}
	assert.InDelta(t, 6.0, CombinedWeight(s), 1e-12)
}

func TestCombinedWeightZeroCountIsZero(t *testing.T) {
	assert.Equal(t, 0.0, CombinedWeight(Stats{}))
}

func TestGSDScalesWithRangeOverFocal(t *testing.T) {
	cam := r3.Vector{Z: 0}
	pt := r3.Vector{Z: 100}
	g := GSD(cam, pt, 50)
	assert.InDelta(t, 2.0, g, 1e-9)
	assert.Equal(t, 0.0, GSD(cam, pt, 0))
}

func TestPositionScatterZeroForConstant(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}}
	v := PositionScatter(pts)
	assert.InDelta(t, 0, v.X, 1e-12)
	assert.True(t, math.IsNaN(v.X) == false)
}

func TestPositionScatterPositiveForSpreadPositions(t *testing.T) {
	pts := []r3.Vector{{X: 0}, {X: 10}, {X: 20}}
	v := PositionScatter(pts)
	assert.InDelta(t, 100, v.X, 1e-9) // sample variance of {0,10,20}
	assert.InDelta(t, 0, v.Y, 1e-12)
}
