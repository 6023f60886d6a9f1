package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/solve"
)

// WorkerState is the worker's position in its lifecycle.
type WorkerState int

const (
	StateIdle WorkerState = iota + 1
	StateBuilding
	StateSolving
	StateEmitting
	StateFailing
	StateShutDown
)

// String returns a human-readable state name.
func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateSolving:
		return "solving"
	case StateEmitting:
		return "emitting"
	case StateFailing:
		return "failing"
	case StateShutDown:
		return "shut down"
	default:
		return "unknown"
	}
}

// Worker pulls envelopes off the work channel, solves items with its own
// engine handle, and posts records or the shutdown acknowledgment. A worker
// owns its Solver exclusively and never touches the store; everything it
// produces goes through the results channel, everything it says through
// the relay logger.
type Worker struct {
	id     int
	solver solve.Solver
	work   <-chan WorkEnvelope
	out    chan<- ResultEnvelope
	log    *slog.Logger

	state  WorkerState
	solves int
}

// NewWorker wires a worker to its channels. IDs start at 1.
func NewWorker(id int, solver solve.Solver, work <-chan WorkEnvelope, out chan<- ResultEnvelope, log *slog.Logger) *Worker {
	return &Worker{
		id:     id,
		solver: solver,
		work:   work,
		out:    out,
		log:    log,
		state:  StateIdle,
	}
}

// State returns the worker's last recorded state. Only meaningful once Run
// has returned; mid-run reads race with the worker goroutine.
func (w *Worker) State() WorkerState { return w.state }

// Run is the worker loop. It blocks on the work channel, which is the
// normal resting position, and exits only on a shutdown envelope. The
// context reaches the engine call; a canceled solve is handled like any
// other failed solve.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker spun up", "worker", w.id)
	for {
		env := <-w.work
		switch env.Kind {
		case WorkShutdown:
			w.state = StateShutDown
			w.log.Debug("worker received shutdown envelope", "worker", w.id)
			w.out <- ResultEnvelope{Kind: ResultShutdownAck, WorkerID: w.id}
			w.log.Info("worker finished", "worker", w.id, "solves", w.solves)
			return
		case WorkSolve:
			if env.Item == nil {
				panic("run: solve envelope without a work item")
			}
			w.solveOne(ctx, env.Item)
		default:
			panic("run: unknown work envelope kind")
		}
	}
}

func (w *Worker) solveOne(ctx context.Context, item *WorkItem) {
	w.state = StateBuilding
	inst := &solve.Instance{Label: item.Label, Data: item.Data}

	w.state = StateSolving
	w.solves++
	start := time.Now()
	sol, err := w.solver.Solve(ctx, inst)
	elapsed := time.Since(start)

	if err != nil {
		w.state = StateFailing
		w.log.Warn("worker failed to solve; skipping",
			"worker", w.id, "run", item.RunIndex, "error", err)
		w.state = StateIdle
		return
	}
	if sol.Status != solve.StatusOptimal {
		w.state = StateFailing
		w.log.Info("worker did not solve",
			"worker", w.id, "run", item.RunIndex, "status", sol.Status.String())
		w.state = StateIdle
		return
	}

	w.state = StateEmitting
	rec := results.NewRecord(item.Label, &sol.Raw)
	w.out <- ResultEnvelope{Kind: ResultRecord, WorkerID: w.id, Record: rec}
	w.log.Info("worker solved a model",
		"worker", w.id, "run", item.RunIndex, "elapsed", elapsed.Round(time.Millisecond))
	w.state = StateIdle
}
