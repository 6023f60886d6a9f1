package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/solve"
	"github.com/jeff-ws/temoa/internal/testutil"
)

// scripted builds an instant engine: run indices in fail error out, runs
// in status terminate non-optimal, everything else solves with a single
// objective row.
func scripted(fail map[int]bool, status map[int]solve.Status) *testutil.ScriptedSolver {
	return testutil.NewScriptedSolver("scripted", func(inst *solve.Instance) (*solve.Solution, error) {
		idx, err := ParseRunIndex(inst.Label)
		if err != nil {
			return nil, err
		}
		if fail[idx] {
			return nil, fmt.Errorf("engine rejected run %d", idx)
		}
		if st, ok := status[idx]; ok {
			return &solve.Solution{Status: st}, nil
		}
		return &solve.Solution{
			Status: solve.StatusOptimal,
			Raw: results.Raw{
				Objectives: []results.ObjectiveRow{{Name: "TotalCost", Value: float64(100 + idx)}},
			},
		}, nil
	})
}

func testItem(idx int) *WorkItem {
	return &WorkItem{RunIndex: idx, Label: Label("mc", idx), Data: dataset.New()}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startWorker runs a worker over fresh channels and returns them with the
// join function.
func startWorker(t *testing.T, solver solve.Solver) (chan WorkEnvelope, chan ResultEnvelope, *Worker, func()) {
	t.Helper()
	work := make(chan WorkEnvelope, 1)
	out := make(chan ResultEnvelope, 8)
	w := NewWorker(1, solver, work, out, discardLogger())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(context.Background())
	}()
	return work, out, w, wg.Wait
}

func TestWorker_ShutdownHandshake(t *testing.T) {
	work, out, w, join := startWorker(t, scripted(nil, nil))

	work <- WorkEnvelope{Kind: WorkShutdown}
	env := <-out
	join()

	assert.Equal(t, ResultShutdownAck, env.Kind)
	assert.Equal(t, 1, env.WorkerID)
	assert.Equal(t, StateShutDown, w.State())
}

func TestWorker_EmitsRecordOnOptimal(t *testing.T) {
	work, out, w, join := startWorker(t, scripted(nil, nil))

	work <- WorkEnvelope{Kind: WorkSolve, Item: testItem(7)}
	env := <-out

	require.Equal(t, ResultRecord, env.Kind)
	require.NotNil(t, env.Record)
	assert.Equal(t, "mc-7", env.Record.Name)
	assert.Equal(t, []results.ObjectiveRow{{Name: "TotalCost", Value: 107}}, env.Record.Objectives)

	work <- WorkEnvelope{Kind: WorkShutdown}
	<-out
	join()
	assert.Equal(t, StateShutDown, w.State())
}

func TestWorker_DiscardsOnSolveError(t *testing.T) {
	work, out, _, join := startWorker(t, scripted(map[int]bool{3: true}, nil))

	work <- WorkEnvelope{Kind: WorkSolve, Item: testItem(3)}
	work <- WorkEnvelope{Kind: WorkShutdown}
	env := <-out
	join()

	assert.Equal(t, ResultShutdownAck, env.Kind, "a failed solve posts nothing; the ack is first out")
	assert.Empty(t, out, "no record envelope for the failed run")
}

func TestWorker_DiscardsOnNonOptimal(t *testing.T) {
	solver := scripted(nil, map[int]solve.Status{5: solve.StatusInfeasible})
	work, out, _, join := startWorker(t, solver)

	work <- WorkEnvelope{Kind: WorkSolve, Item: testItem(5)}
	work <- WorkEnvelope{Kind: WorkSolve, Item: testItem(6)}
	work <- WorkEnvelope{Kind: WorkShutdown}

	first := <-out
	second := <-out
	join()

	assert.Equal(t, ResultRecord, first.Kind, "only the optimal run emits")
	assert.Equal(t, "mc-6", first.Record.Name)
	assert.Equal(t, ResultShutdownAck, second.Kind)
}

func TestWorker_ProcessesNothingAfterShutdown(t *testing.T) {
	work, out, w, join := startWorker(t, scripted(nil, nil))

	work <- WorkEnvelope{Kind: WorkShutdown}
	<-out
	join()

	// The worker already exited; a late envelope stays in the channel.
	work <- WorkEnvelope{Kind: WorkSolve, Item: testItem(9)}
	assert.Equal(t, StateShutDown, w.State())
	assert.Empty(t, out)
}
