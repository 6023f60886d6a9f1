// Package testutil provides deterministic engine doubles shared by tests
// across packages.
package testutil

import (
	"context"
	"sync"

	"github.com/jeff-ws/temoa/internal/solve"
)

// Script decides the outcome of one scripted solve call.
type Script func(inst *solve.Instance) (*solve.Solution, error)

// ScriptedSolver is an instant engine for tests. Every Solve call first
// records the instance label in call order, then answers with the script.
// A nil script answers every call with a bare optimal solution.
//
// Safe for concurrent use, so one instance may back a whole worker pool.
// The script itself must be concurrency-safe if the pool has more than
// one worker.
type ScriptedSolver struct {
	name   string
	script Script

	mu     sync.Mutex
	labels []string
}

// NewScriptedSolver creates a scripted engine. An empty name registers as
// "scripted".
func NewScriptedSolver(name string, script Script) *ScriptedSolver {
	if name == "" {
		name = "scripted"
	}
	return &ScriptedSolver{name: name, script: script}
}

func (s *ScriptedSolver) Name() string { return s.name }

func (s *ScriptedSolver) Solve(_ context.Context, inst *solve.Instance) (*solve.Solution, error) {
	s.mu.Lock()
	s.labels = append(s.labels, inst.Label)
	s.mu.Unlock()
	if s.script == nil {
		return &solve.Solution{Status: solve.StatusOptimal}, nil
	}
	return s.script(inst)
}

// Labels returns a copy of the instance labels seen so far, in call order.
// With concurrent workers the order is arrival order, not dispatch order.
func (s *ScriptedSolver) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

// Calls reports how many solves were requested.
func (s *ScriptedSolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.labels)
}

// RegisterSolver wires a ready-made solver into the engine registry under
// its own name, ignoring any engine options. Registration is global and
// permanent, and duplicate names panic, so each test registers under a
// name of its own.
func RegisterSolver(solver solve.Solver) {
	solve.Register(solver.Name(), func(map[string]any) (solve.Solver, error) {
		return solver, nil
	})
}
