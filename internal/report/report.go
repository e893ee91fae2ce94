// Package report exports jitter-solve results: the solver summary and per-camera/point
// displacement, as a fixed-width text table plus a companion CSV, mirroring the corpus's own
// report export convention. Per-observation residual tables are not written.
package report

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/golang/geo/r3"

	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
)

// Displacement is the before/after delta for one camera position sample or triangulated point.
type Displacement struct {
	ID     int
	Label  string
	Before r3.Vector
	After  r3.Vector
}

func (d Displacement) Delta() r3.Vector {
	return d.After.Sub(d.Before)
}

// rollWeightForReport reproduces the camera model's "roll_weight || 1.0" reporting quirk: a
// reported per-residual weight falls back to 1.0 when the configured roll weight is zero,
// rather than reporting a misleading zero scale.
func rollWeightForReport(rollWeight float64) float64 {
	if rollWeight != 0 {
		return rollWeight
	}
	return 1.0
}

// Export writes a text report and a companion CSV of camera and point displacement to baseDir.
func Export(baseDir string, summary nlsq.Summary, camDisp, ptDisp []Displacement) error {
	reportPath := baseDir + "/jitter_solve_report.txt"
	f, err := os.Create(reportPath)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "====================================================\n")
	fmt.Fprintf(f, "          jitter-solve adjustment report\n")
	fmt.Fprintf(f, "====================================================\n")
	fmt.Fprintf(f, "initial cost          : %.6f\n", summary.InitialCost)
	fmt.Fprintf(f, "final cost            : %.6f\n", summary.FinalCost)
	fmt.Fprintf(f, "iterations            : %d\n", summary.Iterations)
	fmt.Fprintf(f, "termination           : %s\n", summary.TerminationCause)
	fmt.Fprintf(f, "----------------------------------------------------\n\n")

	fmt.Fprintf(f, "[camera position displacement, meters]\n")
	fmt.Fprintf(f, "%-8s %10s %10s %10s\n", "CamID", "dX", "dY", "dZ")
	for _, d := range camDisp {
		delta := d.Delta()
		fmt.Fprintf(f, "%-8s %10.4f %10.4f %10.4f\n", d.Label, delta.X, delta.Y, delta.Z)
	}

	fmt.Fprintf(f, "\n[triangulated point displacement, meters]\n")
	fmt.Fprintf(f, "%-8s %10s %10s %10s\n", "PtID", "dX", "dY", "dZ")
	for _, d := range ptDisp {
		delta := d.Delta()
		fmt.Fprintf(f, "%-8s %10.4f %10.4f %10.4f\n", d.Label, delta.X, delta.Y, delta.Z)
	}

	csvPath := baseDir + "/jitter_solve_displacement.csv"
	fc, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	defer fc.Close()
	w := csv.NewWriter(fc)
	w.Write([]string{"Kind", "ID", "dX", "dY", "dZ"})
	for _, d := range camDisp {
		delta := d.Delta()
		w.Write([]string{"camera", d.Label, fmt.Sprintf("%.6f", delta.X), fmt.Sprintf("%.6f", delta.Y), fmt.Sprintf("%.6f", delta.Z)})
	}
	for _, d := range ptDisp {
		delta := d.Delta()
		w.Write([]string{"point", d.Label, fmt.Sprintf("%.6f", delta.X), fmt.Sprintf("%.6f", delta.Y), fmt.Sprintf("%.6f", delta.Z)})
	}
	w.Flush()
	return w.Error()
}

// PointDisplacements builds a Displacement list comparing each point's initial and final
// coordinates.
func PointDisplacements(pts []*model.TriangulatedPoint) []Displacement {
	out := make([]Displacement, 0, len(pts))
	for _, p := range pts {
		out = append(out, Displacement{ID: p.ID, Label: fmt.Sprintf("%d", p.ID), Before: p.Initial, After: p.XYZ})
	}
	return out
}
