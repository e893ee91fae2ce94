// Package driver runs the jitter-solve state machine: INIT -> ADAPT -> WIRE_REPROJ ->
// WIRE_PRIORS -> SOLVE -> COMMIT.
package driver

import (
	"context"
	"fmt"

	"jittersolve/internal/calib"
	"jittersolve/internal/config"
	"jittersolve/internal/coupling"
	"jittersolve/internal/logging"
	"jittersolve/internal/model"
	"jittersolve/internal/nlsq"
	"jittersolve/internal/paramstore"
	"jittersolve/internal/residuals"
	"jittersolve/internal/rig"
	"jittersolve/internal/sensor"
)

// State is one stage of the driver's unconditional state machine.
type State int

const (
	Init State = iota
	Adapt
	WireReproj
	WirePriors
	Solve
	Commit
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "INIT"
	case Adapt:
		return "ADAPT"
	case WireReproj:
		return "WIRE_REPROJ"
	case WirePriors:
		return "WIRE_PRIORS"
	case Solve:
		return "SOLVE"
	case Commit:
		return "COMMIT"
	default:
		return "DONE"
	}
}

// Problem is the fully loaded input to one jitter solve: sensors, triangulated points,
// observations and the optional rig configuration.
type Problem struct {
	Sensors      []sensor.Sensor
	Points       []*model.TriangulatedPoint
	Observations []model.Observation
	Rig          *rig.Bridge // nil for a non-rig problem
}

// Result is the outcome of one Run: the nlsq solver summary plus the mutated problem (sensors
// and points have been updated in place).
type Result struct {
	Summary nlsq.Summary
}

// Driver executes the jitter-solve state machine once per Run call.
type Driver struct {
	opts          config.Options
	log           logging.Logger
	commitSummary nlsq.Summary
}

// New creates a driver with the given options and logger.
func New(opts config.Options, log logging.Logger) *Driver {
	return &Driver{opts: opts, log: log}
}

// Run executes INIT through COMMIT against prob, mutating its sensors and points in place.
func (d *Driver) Run(ctx context.Context, prob *Problem) (Result, error) {
	state := Init
	pool := paramstore.NewPool()
	problem := nlsq.NewProblem(pool)
	cal := calib.NewCalibrator()

	blocks := newBlockIndex()

	for state != Done {
		d.log.Info(ctx, "driver state", logging.Field{Key: "state", Value: state.String()})
		var err error
		current := state
		switch state {
		case Init:
			err = d.init(prob)
			state = Adapt
		case Adapt:
			err = d.adapt(problem, prob, blocks)
			state = WireReproj
		case WireReproj:
			err = d.wireReproj(problem, prob, blocks, cal)
			state = WirePriors
		case WirePriors:
			err = d.wirePriors(ctx, problem, prob, blocks, cal)
			state = Solve
		case Solve:
			var summary nlsq.Summary
			summary, err = problem.Solve(nlsq.Options{
				MaxIterations: d.opts.NumIterations,
				ParameterTol:  d.opts.ParameterTolerance,
				FunctionTol:   1e-16,
				GradientTol:   1e-16,
			})
			if err == nil {
				d.commitSummary = summary
			}
			state = Commit
		case Commit:
			d.commit(problem, prob, blocks)
			state = Done
		}
		if err != nil {
			return Result{}, fmt.Errorf("driver: state %s: %w", current, err)
		}
	}
	return Result{Summary: d.commitSummary}, nil
}
