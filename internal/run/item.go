// Package run coordinates a pool of solver workers over bounded channels:
// a generator feeds work items one ahead, workers solve and post records,
// and a single coordinator loop dispatches, collects, relays worker logs,
// and runs the shutdown handshake.
package run

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/results"
)

// ErrExhausted is returned by a Generator when no work items remain.
var ErrExhausted = errors.New("run: generator exhausted")

// WorkItem is one fully specified unit of optimization work. Data is a
// private snapshot: no other item aliases it.
type WorkItem struct {
	RunIndex int
	Label    string
	Data     *dataset.Snapshot
	Changes  []results.ChangeRecord
}

// Generator produces work items one at a time, each with a distinct run
// index. Next returns ErrExhausted when the sequence ends; any other error
// aborts the whole run before dispatch.
type Generator interface {
	Next() (*WorkItem, error)
}

// Label builds the canonical run label for a scenario and index.
func Label(scenario string, index int) string {
	return fmt.Sprintf("%s-%d", scenario, index)
}

// ParseRunIndex extracts the run index from a label of the form
// "<scenario>-<index>". The index is everything after the last dash.
func ParseRunIndex(label string) (int, error) {
	cut := strings.LastIndex(label, "-")
	if cut < 0 {
		return 0, fmt.Errorf("run: label %q carries no run index", label)
	}
	idx, err := strconv.Atoi(label[cut+1:])
	if err != nil {
		return 0, fmt.Errorf("run: label %q carries no run index", label)
	}
	return idx, nil
}
