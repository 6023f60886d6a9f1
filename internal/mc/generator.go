package mc

import (
	"fmt"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/run"
)

// Generator yields one work item per run in the settings file, in file
// order. Each item carries a private clone of the base snapshot with the
// run's tweaks applied, plus one change record per touched cell. It
// implements run.Generator.
type Generator struct {
	scenario string
	base     *dataset.Snapshot
	settings *Settings
	next     int
}

// NewGenerator prescreens the settings against the base data: a tweak
// that matches no cell is a build error, reported before any solve
// starts.
func NewGenerator(scenario string, base *dataset.Snapshot, settings *Settings) (*Generator, error) {
	for _, runIdx := range settings.order {
		for _, tw := range settings.tweaks[runIdx] {
			tbl, ok := base.Table(tw.Param)
			if !ok || len(tbl.MatchKeys(tw.Index)) == 0 {
				return nil, fmt.Errorf("mc: run %d: tweak %s matches no cell in the input data", runIdx, tw)
			}
		}
	}
	return &Generator{scenario: scenario, base: base, settings: settings}, nil
}

// Next builds the next run's work item, or run.ErrExhausted after the
// last one.
func (g *Generator) Next() (*run.WorkItem, error) {
	if g.next >= len(g.settings.order) {
		return nil, run.ErrExhausted
	}
	runIdx := g.settings.order[g.next]
	g.next++

	data := g.base.Clone()
	var changes []results.ChangeRecord
	for _, tw := range g.settings.tweaks[runIdx] {
		tbl, _ := data.Table(tw.Param)
		for _, k := range tbl.MatchKeys(tw.Index) {
			old := tbl[k]
			val := tw.apply(old)
			tbl[k] = val
			changes = append(changes, results.ChangeRecord{
				Run:      runIdx,
				Param:    tw.Param,
				Index:    k,
				OldValue: old,
				NewValue: val,
			})
		}
	}
	return &run.WorkItem{
		RunIndex: runIdx,
		Label:    run.Label(g.scenario, runIdx),
		Data:     data,
		Changes:  changes,
	}, nil
}
