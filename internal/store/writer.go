package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jeff-ws/temoa/internal/results"
	"github.com/jeff-ws/temoa/internal/run"
)

// basicOutputTables are the result tables present in every database.
var basicOutputTables = []string{
	"OutputBuiltCapacity",
	"OutputCost",
	"OutputCurtailment",
	"OutputDualVariable",
	"OutputEmission",
	"OutputFlowIn",
	"OutputFlowOut",
	"OutputNetCapacity",
	"OutputObjective",
	"OutputRetiredCapacity",
}

// optionalOutputTables exist only after EnsureIterativeTables has run.
var optionalOutputTables = []string{
	"OutputFlowOutSummary",
	"OutputMCDelta",
}

// Writer persists solved-run results under a scenario name. It is the
// production ResultSink for iterative runs and the per-window writer for
// myopic ones. Only one goroutine writes at a time.
type Writer struct {
	store    *Store
	scenario string
	sectors  map[string]string
}

// NewWriter returns a writer bound to the store and scenario.
func NewWriter(st *Store, scenario string) *Writer {
	return &Writer{store: st, scenario: scenario}
}

// Scenario returns the base scenario name.
func (w *Writer) Scenario() string { return w.scenario }

// ensureSectors pulls the tech-to-sector map on first use.
func (w *Writer) ensureSectors(ctx context.Context) error {
	if w.sectors != nil {
		return nil
	}
	sectors, err := w.store.TechSectors(ctx)
	if err != nil {
		return err
	}
	w.sectors = sectors
	return nil
}

// sectorOf returns the tech's sector, or nil so the column reads NULL.
func (w *Writer) sectorOf(tech string) any {
	if s, ok := w.sectors[tech]; ok {
		return s
	}
	return nil
}

// HandleResult persists one iterative-run record: emissions, capacity,
// season-aggregated out-flows, merged costs, and objectives, all under the
// record's own label, in a single transaction. Per-season flow tables are
// skipped for iterative runs.
func (w *Writer) HandleResult(rec *results.Record) error {
	// Records must land even when the run context has been canceled
	// during the shutdown drain, so no caller context is taken.
	ctx := context.Background()
	if err := w.ensureSectors(ctx); err != nil {
		return err
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer tx.Rollback()
	if err := w.insertEmissions(ctx, tx, rec.Name, rec.EmissionFlows); err != nil {
		return err
	}
	if err := w.insertCapacity(ctx, tx, rec.Name, rec.Capacity); err != nil {
		return err
	}
	if err := w.insertSummaryFlows(ctx, tx, rec.Name, rec); err != nil {
		return err
	}
	if err := w.insertCosts(ctx, tx, rec.Name, rec); err != nil {
		return err
	}
	if err := w.insertObjectives(ctx, tx, rec.Name, rec.Objectives); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}

// RecordChanges persists the perturbations applied to one run so the run's
// inputs can be reconstructed later.
func (w *Writer) RecordChanges(runIndex int, changes []results.ChangeRecord) error {
	ctx := context.Background()
	label := run.Label(w.scenario, runIndex)
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tweak tx: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputMCDelta (scenario, run, param, param_index, old_val, new_val)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare tweak insert: %w", err)
	}
	defer stmt.Close()
	for _, ch := range changes {
		_, err := stmt.ExecContext(ctx, label, runIndex, ch.Param, string(ch.Index), ch.OldValue, ch.NewValue)
		if err != nil {
			return fmt.Errorf("insert tweak: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tweak tx: %w", err)
	}
	return nil
}

// WriteResults persists a full single-solve record under its own label:
// objectives, capacity, emissions, merged costs, and the per-season flow
// tables. Existing rows are left alone; clear first when replacing.
func (w *Writer) WriteResults(ctx context.Context, rec *results.Record) error {
	if err := w.ensureSectors(ctx); err != nil {
		return err
	}
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer tx.Rollback()
	if err := w.insertObjectives(ctx, tx, rec.Name, rec.Objectives); err != nil {
		return err
	}
	if err := w.insertCapacity(ctx, tx, rec.Name, rec.Capacity); err != nil {
		return err
	}
	if err := w.insertEmissions(ctx, tx, rec.Name, rec.EmissionFlows); err != nil {
		return err
	}
	if err := w.insertCosts(ctx, tx, rec.Name, rec); err != nil {
		return err
	}
	if err := w.insertFlows(ctx, tx, rec.Name, rec.Flows); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}

// WriteDuals persists constraint duals under the given label. Myopic runs
// label duals per window while the rest of the tables carry the plain
// scenario name.
func (w *Writer) WriteDuals(ctx context.Context, label string, duals map[string]float64) error {
	names := make([]string, 0, len(duals))
	for name := range duals {
		names = append(names, name)
	}
	sort.Strings(names)
	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dual tx: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputDualVariable (scenario, constraint_name, dual)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare dual insert: %w", err)
	}
	defer stmt.Close()
	for _, name := range names {
		if _, err := stmt.ExecContext(ctx, label, name, duals[name]); err != nil {
			return fmt.Errorf("insert dual: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dual tx: %w", err)
	}
	return nil
}

// ClearScenario removes all prior results for the scenario and for its
// iterative extensions ("name-0", "name-1", ...). Optional tables are
// cleared only when present.
func (w *Writer) ClearScenario(ctx context.Context) error {
	for _, table := range basicOutputTables {
		_, err := w.store.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE scenario = ?`, w.scenario)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	pattern := w.scenario + "-%"
	for _, table := range basicOutputTables {
		_, err := w.store.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE scenario LIKE ?`, pattern)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	for _, table := range optionalOutputTables {
		ok, err := w.store.tableExists(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		_, err = w.store.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE scenario = ? OR scenario LIKE ?`, w.scenario, pattern)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (w *Writer) insertObjectives(ctx context.Context, tx *sql.Tx, label string, objs []results.ObjectiveRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputObjective (scenario, objective_name, total_system_cost)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare objective insert: %w", err)
	}
	defer stmt.Close()
	for _, o := range objs {
		if _, err := stmt.ExecContext(ctx, label, o.Name, o.Value); err != nil {
			return fmt.Errorf("insert objective: %w", err)
		}
	}
	return nil
}

func (w *Writer) insertEmissions(ctx context.Context, tx *sql.Tx, label string, flows map[results.EI]float64) error {
	keys := make([]results.EI, 0, len(flows))
	for ei := range flows {
		keys = append(keys, ei)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Emission != b.Emission {
			return a.Emission < b.Emission
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Vintage < b.Vintage
	})
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputEmission (scenario, region, sector, period, emis_comm, tech, vintage, emission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare emission insert: %w", err)
	}
	defer stmt.Close()
	for _, ei := range keys {
		_, err := stmt.ExecContext(ctx, label, ei.Region, w.sectorOf(ei.Tech), ei.Period, ei.Emission, ei.Tech, ei.Vintage, flows[ei])
		if err != nil {
			return fmt.Errorf("insert emission: %w", err)
		}
	}
	return nil
}

func (w *Writer) insertCapacity(ctx context.Context, tx *sql.Tx, label string, capData results.CapData) error {
	built, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputBuiltCapacity (scenario, region, sector, tech, vintage, capacity)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare built capacity insert: %w", err)
	}
	defer built.Close()
	for _, row := range capData.Built {
		_, err := built.ExecContext(ctx, label, row.Region, w.sectorOf(row.Tech), row.Tech, row.Vintage, row.Capacity)
		if err != nil {
			return fmt.Errorf("insert built capacity: %w", err)
		}
	}
	if err := w.insertPeriodCapacity(ctx, tx, "OutputNetCapacity", label, capData.Net); err != nil {
		return err
	}
	return w.insertPeriodCapacity(ctx, tx, "OutputRetiredCapacity", label, capData.Retired)
}

func (w *Writer) insertPeriodCapacity(ctx context.Context, tx *sql.Tx, table, label string, rows []results.CapacityRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+table+` (scenario, region, sector, period, tech, vintage, capacity)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", table, err)
	}
	defer stmt.Close()
	for _, row := range rows {
		_, err := stmt.ExecContext(ctx, label, row.Region, w.sectorOf(row.Tech), row.Period, row.Tech, row.Vintage, row.Capacity)
		if err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return nil
}

func (w *Writer) insertSummaryFlows(ctx context.Context, tx *sql.Tx, label string, rec *results.Record) error {
	summary := rec.OutFlowSummary()
	keys := make([]results.SummaryIndex, 0, len(summary))
	for idx := range summary {
		keys = append(keys, idx)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		if a.Vintage != b.Vintage {
			return a.Vintage < b.Vintage
		}
		if a.Input != b.Input {
			return a.Input < b.Input
		}
		return a.Output < b.Output
	})
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputFlowOutSummary (scenario, region, sector, period, input_comm, tech, vintage, output_comm, flow)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare summary flow insert: %w", err)
	}
	defer stmt.Close()
	for _, idx := range keys {
		_, err := stmt.ExecContext(ctx, label, idx.Region, w.sectorOf(idx.Tech), idx.Period, idx.Input, idx.Tech, idx.Vintage, idx.Output, summary[idx])
		if err != nil {
			return fmt.Errorf("insert summary flow: %w", err)
		}
	}
	return nil
}

// flowTables routes each flow type to its table and value column. Flex
// curtailment lands in the same table as ordinary curtailment; losses are
// derivable and never written.
var flowTables = []struct {
	ft     results.FlowType
	table  string
	column string
}{
	{results.FlowOut, "OutputFlowOut", "flow"},
	{results.FlowIn, "OutputFlowIn", "flow"},
	{results.FlowCurtail, "OutputCurtailment", "curtailment"},
	{results.FlowFlex, "OutputCurtailment", "curtailment"},
}

func (w *Writer) insertFlows(ctx context.Context, tx *sql.Tx, label string, flows map[results.FI]results.FlowMap) error {
	keys := make([]results.FI, 0, len(flows))
	for fi := range flows {
		keys = append(keys, fi)
	}
	sort.Slice(keys, func(i, j int) bool { return lessFI(keys[i], keys[j]) })
	for _, ft := range flowTables {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO `+ft.table+` (scenario, region, sector, period, season, tod, input_comm, tech, vintage, output_comm, `+ft.column+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", ft.table, err)
		}
		for _, fi := range keys {
			val, ok := flows[fi][ft.ft]
			if !ok {
				continue
			}
			_, err := stmt.ExecContext(ctx, label, fi.Region, w.sectorOf(fi.Tech), fi.Period, fi.Season, fi.TOD, fi.Input, fi.Tech, fi.Vintage, fi.Output, val)
			if err != nil {
				stmt.Close()
				return fmt.Errorf("insert %s: %w", ft.table, err)
			}
		}
		stmt.Close()
	}
	return nil
}

func lessFI(a, b results.FI) bool {
	if a.Region != b.Region {
		return a.Region < b.Region
	}
	if a.Period != b.Period {
		return a.Period < b.Period
	}
	if a.Season != b.Season {
		return a.Season < b.Season
	}
	if a.TOD != b.TOD {
		return a.TOD < b.TOD
	}
	if a.Input != b.Input {
		return a.Input < b.Input
	}
	if a.Tech != b.Tech {
		return a.Tech < b.Tech
	}
	if a.Vintage != b.Vintage {
		return a.Vintage < b.Vintage
	}
	return a.Output < b.Output
}

// insertCosts writes the itemized cost rows. Emission costs merge into the
// regular entry for the same process; exchange-process rows follow the
// regular block. Rows are ordered by (region, vintage, tech, period).
func (w *Writer) insertCosts(ctx context.Context, tx *sql.Tx, label string, rec *results.Record) error {
	merged := map[results.CostIndex]results.Costs{}
	for idx, costs := range rec.RegularCosts {
		c := results.Costs{}
		for ct, v := range costs {
			c[ct] = v
		}
		merged[idx] = c
	}
	for idx, costs := range rec.EmissionCosts {
		c, ok := merged[idx]
		if !ok {
			c = results.Costs{}
			merged[idx] = c
		}
		for ct, v := range costs {
			c[ct] = v
		}
	}
	if err := w.insertCostRows(ctx, tx, label, merged); err != nil {
		return err
	}
	return w.insertCostRows(ctx, tx, label, rec.ExchangeCosts)
}

func (w *Writer) insertCostRows(ctx context.Context, tx *sql.Tx, label string, entries map[results.CostIndex]results.Costs) error {
	keys := make([]results.CostIndex, 0, len(entries))
	for idx := range entries {
		keys = append(keys, idx)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.Vintage != b.Vintage {
			return a.Vintage < b.Vintage
		}
		if a.Tech != b.Tech {
			return a.Tech < b.Tech
		}
		return a.Period < b.Period
	})
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO OutputCost (scenario, region, period, tech, vintage,
		                        d_invest, d_fixed, d_var, d_emiss,
		                        invest, fixed, var, emiss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare cost insert: %w", err)
	}
	defer stmt.Close()
	for _, idx := range keys {
		c := entries[idx]
		_, err := stmt.ExecContext(ctx, label, idx.Region, idx.Period, idx.Tech, idx.Vintage,
			c[results.CostInvestDiscounted], c[results.CostFixedDiscounted],
			c[results.CostVariableDiscounted], c[results.CostEmissionDiscounted],
			c[results.CostInvest], c[results.CostFixed],
			c[results.CostVariable], c[results.CostEmission])
		if err != nil {
			return fmt.Errorf("insert cost: %w", err)
		}
	}
	return nil
}

// tableExists reports whether the named table is present in the schema.
func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var found string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?
	`, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", name, err)
	}
	return true, nil
}
