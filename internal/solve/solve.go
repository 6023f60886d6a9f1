// Package solve is the boundary to optimization engines. The module ships
// no engine of its own: engines register themselves by name, the way
// database drivers do, and everything above this package talks to the
// Solver interface only.
package solve

import (
	"context"
	"fmt"
	"time"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/results"
)

// Status is an engine's termination condition. Only StatusOptimal counts
// as success; everything else discards the run.
type Status int

const (
	StatusOptimal Status = iota + 1
	StatusInfeasible
	StatusUnbounded
	StatusLimit
	StatusError
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusLimit:
		return "limit"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Instance is one concrete problem hand-off: a label for reporting and the
// parameter snapshot the model is built from.
type Instance struct {
	Label string
	Data  *dataset.Snapshot
}

// Solution is what an engine returns for a solved instance. Raw holds the
// unfiltered value extraction; results.NewRecord compacts it.
type Solution struct {
	Status  Status
	Elapsed time.Duration
	Raw     results.Raw
}

// Solver solves instances. Implementations must be safe for sequential
// reuse; the pool gives each worker its own Solver.
type Solver interface {
	Name() string
	Solve(ctx context.Context, inst *Instance) (*Solution, error)
}
