// Command jitter-solve refines per-sample camera pose tables and triangulated ground points
// against a set of tie-point observations, correcting sub-pixel jitter in pushbroom and frame
// imaging geometries.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"jittersolve/internal/anchor"
	"jittersolve/internal/config"
	"jittersolve/internal/dem"
	"jittersolve/internal/driver"
	"jittersolve/internal/logging"
	"jittersolve/internal/project"
	"jittersolve/internal/report"
)

func main() {
	fs := flag.NewFlagSet("jitter-solve", flag.ExitOnError)
	projectPath := fs.String("project", "", "path to a project manifest JSON file")
	outDir := fs.String("out", ".", "directory to write the adjustment report to")
	jsonLogs := fs.Bool("json-logs", false, "emit structured JSON logs instead of text")
	opts := config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	level := slog.LevelInfo
	log := logging.New(logging.Config{JSON: *jsonLogs, Level: level})
	ctx := context.Background()

	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "jitter-solve: -project is required")
		os.Exit(2)
	}

	proj, err := project.Load(*projectPath)
	if err != nil {
		log.Error(ctx, "failed to load project", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	if proj.Manifest.DemFile != "" && opts.NumAnchorPointsPerImage > 0 {
		demPath := filepath.Join(filepath.Dir(*projectPath), proj.Manifest.DemFile)
		if err := synthesizeAnchors(proj, *opts, demPath); err != nil {
			log.Error(ctx, "anchor synthesis failed", logging.Field{Key: "error", Value: err.Error()})
			os.Exit(1)
		}
	}

	prob := &driver.Problem{
		Sensors:      proj.Sensors,
		Points:       proj.Points,
		Observations: proj.Observations,
	}

	d := driver.New(*opts, log)
	result, err := d.Run(ctx, prob)
	if err != nil {
		log.Error(ctx, "solve failed", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}

	log.Info(ctx, "solve complete",
		logging.Field{Key: "iterations", Value: result.Summary.Iterations},
		logging.Field{Key: "initial_cost", Value: result.Summary.InitialCost},
		logging.Field{Key: "final_cost", Value: result.Summary.FinalCost},
	)

	ptDisp := report.PointDisplacements(proj.Points)
	if err := report.Export(*outDir, result.Summary, nil, ptDisp); err != nil {
		log.Error(ctx, "failed to export report", logging.Field{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
}

// synthesizeAnchors loads the project's anchor DEM and appends one anchor.Synthesize hit set per
// sensor to the project's points and observations, assigning fresh point IDs above the highest
// one already in use.
func synthesizeAnchors(proj *project.Project, opts config.Options, demPath string) error {
	grid, err := dem.LoadCSV(demPath)
	if err != nil {
		return err
	}

	nextID := 0
	for _, p := range proj.Points {
		if p.ID >= nextID {
			nextID = p.ID + 1
		}
	}

	cfg := anchor.Config{
		NumAnchorPoints: opts.NumAnchorPointsPerImage,
		ExtraLines:      opts.NumAnchorPointsExtraLines,
		Weight:          opts.AnchorWeight,
		EarthRadius:     6371000,
	}
	for ci, s := range proj.Sensors {
		hits := anchor.Synthesize(cfg, ci, s, grid, func() int {
			id := nextID
			nextID++
			return id
		})
		for _, h := range hits {
			point := h.Point
			proj.Points = append(proj.Points, &point)
			proj.Observations = append(proj.Observations, h.Observation)
		}
	}
	return nil
}
