package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
)

func TestDisplacementDelta(t *testing.T) {
	d := Displacement{Before: r3.Vector{X: 1, Y: 2, Z: 3}, After: r3.Vector{X: 4, Y: 2, Z: 0}}
	delta := d.Delta()
	assert.Equal(t, r3.Vector{X: 3, Y: 0, Z: -3}, delta)
}

func TestRollWeightForReportFallsBackToOne(t *testing.T) {
	assert.Equal(t, 1.0, rollWeightForReport(0))
	assert.Equal(t, 2.5, rollWeightForReport(2.5))
}

func TestPointDisplacementsComparesInitialToFinal(t *testing.T) {
	pts := []*model.TriangulatedPoint{
		{ID: 1, Initial: r3.Vector{X: 0}, XYZ: r3.Vector{X: 5}},
	}
	disp := PointDisplacements(pts)
	require.Len(t, disp, 1)
	assert.InDelta(t, 5, disp[0].Delta().X, 1e-9)
	assert.Equal(t, "1", disp[0].Label)
}

func TestExportWritesTextAndCSV(t *testing.T) {
	dir := t.TempDir()
	summary := nlsq.Summary{InitialCost: 10, FinalCost: 1, Iterations: 5, Converged: true, TerminationCause: "converged"}
	ptDisp := []Displacement{{ID: 0, Label: "0", Before: r3.Vector{}, After: r3.Vector{X: 1}}}

	require.NoError(t, Export(dir, summary, nil, ptDisp))

	txt, err := os.ReadFile(filepath.Join(dir, "jitter_solve_report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(txt), "jitter-solve adjustment report")

	csvBytes, err := os.ReadFile(filepath.Join(dir, "jitter_solve_displacement.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csvBytes), "point,0")
}
