package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jeff-ws/temoa/internal/dataset"
	"github.com/jeff-ws/temoa/internal/network"
)

// DefaultLifetime is the process lifetime, in years, assumed when neither
// LifetimeProcess nor LifetimeTech carries a row for the process.
const DefaultLifetime = 40

// PeriodSpan bounds a load to one optimization window. Base is the first
// period solved; LastDemandYear is the last period that carries demand
// inside the window.
type PeriodSpan struct {
	Base           int
	LastDemandYear int
}

func (p PeriodSpan) String() string {
	return fmt.Sprintf("[%d, %d]", p.Base, p.LastDemandYear)
}

// FuturePeriods returns the optimization periods (flag 'f') in ascending
// order. The last of them is the horizon boundary and carries no demand.
func (s *Store) FuturePeriods(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period FROM TimePeriod WHERE flag = 'f' ORDER BY period
	`)
	if err != nil {
		return nil, fmt.Errorf("query future periods: %w", err)
	}
	defer rows.Close()

	var periods []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan future period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate future periods: %w", err)
	}
	return periods, nil
}

// TechSectors returns the sector label for every technology that has one.
// Technologies with a NULL sector are absent from the map.
func (s *Store) TechSectors(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tech, sector FROM Technology`)
	if err != nil {
		return nil, fmt.Errorf("query tech sectors: %w", err)
	}
	defer rows.Close()

	sectors := map[string]string{}
	for rows.Next() {
		var tech string
		var sector sql.NullString
		if err := rows.Scan(&tech, &sector); err != nil {
			return nil, fmt.Errorf("scan tech sector: %w", err)
		}
		if sector.Valid {
			sectors[tech] = sector.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tech sectors: %w", err)
	}
	return sectors, nil
}

// LoadModelData builds the commodity network model for the whole horizon:
// technology lifetimes come from LifetimeProcess, then LifetimeTech, then
// DefaultLifetime.
func (s *Store) LoadModelData(ctx context.Context) (*network.ModelData, error) {
	return s.loadModelData(ctx, nil)
}

// LoadWindowModelData builds the commodity network model for one myopic
// window. Technologies come from MyopicEfficiency, so only capacity that
// survived earlier windows is visible.
func (s *Store) LoadWindowModelData(ctx context.Context, span PeriodSpan) (*network.ModelData, error) {
	return s.loadModelData(ctx, &span)
}

// effRow is one efficiency entry joined with its resolved lifetime.
type effRow struct {
	region   string
	input    string
	tech     string
	vintage  int
	output   string
	lifetime int
}

func (s *Store) loadModelData(ctx context.Context, span *PeriodSpan) (*network.ModelData, error) {
	all, err := s.commodities(ctx, "")
	if err != nil {
		return nil, err
	}
	sources, err := s.commodities(ctx, "s")
	if err != nil {
		return nil, err
	}
	demands, err := s.demandCommodities(ctx)
	if err != nil {
		return nil, err
	}

	var effs []effRow
	if span == nil {
		effs, err = s.horizonEfficiencies(ctx)
	} else {
		effs, err = s.windowEfficiencies(ctx, span.Base)
	}
	if err != nil {
		return nil, err
	}

	future, err := s.FuturePeriods(ctx)
	if err != nil {
		return nil, err
	}
	if len(future) < 2 {
		return nil, fmt.Errorf("store: found %d future periods; a model needs at least one demand period and the horizon boundary", len(future))
	}
	// The last future period bounds the horizon and is never solved.
	periods := future[:len(future)-1]
	if span != nil {
		var bounded []int
		for _, p := range periods {
			if span.Base <= p && p <= span.LastDemandYear {
				bounded = append(bounded, p)
			}
		}
		periods = bounded
	}

	techs := map[network.RegionPeriod]network.TechSet{}
	living := network.StringSet{}
	for _, e := range effs {
		t := network.NewTech(e.region, e.input, e.tech, e.vintage, e.output)
		for _, p := range periods {
			if e.vintage <= p && p < e.vintage+e.lifetime {
				rp := network.RegionPeriod{Region: t.Region, Period: p}
				bucket, ok := techs[rp]
				if !ok {
					bucket = network.TechSet{}
					techs[rp] = bucket
				}
				bucket.Add(t)
				living.Add(t.Name)
			}
		}
	}

	linked, err := s.linkedTechs(ctx, living)
	if err != nil {
		return nil, err
	}
	return network.NewModelData(all, sources, demands, techs, linked)
}

// commodities returns the commodity names with the given flag, or all
// names when flag is empty.
func (s *Store) commodities(ctx context.Context, flag string) (network.StringSet, error) {
	query := `SELECT name FROM Commodity`
	var args []any
	if flag != "" {
		query += ` WHERE flag = ?`
		args = append(args, flag)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query commodities: %w", err)
	}
	defer rows.Close()

	set := network.StringSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan commodity: %w", err)
		}
		set.Add(network.Normalize(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate commodities: %w", err)
	}
	return set, nil
}

// demandCommodities buckets the demanded commodity names by region and
// period, straight from the Demand table.
func (s *Store) demandCommodities(ctx context.Context) (map[network.RegionPeriod]network.StringSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT region, period, commodity FROM Demand`)
	if err != nil {
		return nil, fmt.Errorf("query demand commodities: %w", err)
	}
	defer rows.Close()

	demands := map[network.RegionPeriod]network.StringSet{}
	for rows.Next() {
		var region, commodity string
		var period int
		if err := rows.Scan(&region, &period, &commodity); err != nil {
			return nil, fmt.Errorf("scan demand commodity: %w", err)
		}
		rp := network.RegionPeriod{Region: network.Normalize(region), Period: period}
		set, ok := demands[rp]
		if !ok {
			set = network.StringSet{}
			demands[rp] = set
		}
		set.Add(network.Normalize(commodity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate demand commodities: %w", err)
	}
	return demands, nil
}

// horizonEfficiencies reads every efficiency entry with its lifetime
// resolved from LifetimeProcess, then LifetimeTech, then the default.
// Vintages that are not model periods are dropped by the TimePeriod join.
func (s *Store) horizonEfficiencies(ctx context.Context) ([]effRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT Efficiency.region, Efficiency.input_comm, Efficiency.tech,
		       Efficiency.vintage, Efficiency.output_comm,
		       coalesce(LifetimeProcess.lifetime, LifetimeTech.lifetime, ?) AS lifetime
		FROM Efficiency
		LEFT JOIN LifetimeProcess
		     ON Efficiency.region = LifetimeProcess.region
		    AND Efficiency.tech = LifetimeProcess.tech
		    AND Efficiency.vintage = LifetimeProcess.vintage
		LEFT JOIN LifetimeTech
		     ON Efficiency.region = LifetimeTech.region
		    AND Efficiency.tech = LifetimeTech.tech
		JOIN TimePeriod ON Efficiency.vintage = TimePeriod.period
	`, DefaultLifetime)
	if err != nil {
		return nil, fmt.Errorf("query efficiencies: %w", err)
	}
	return scanEffRows(rows)
}

// windowEfficiencies reads the myopic efficiency entries still alive at the
// window base year. MyopicEfficiency rows carry the lifetime they were
// seeded with, so no join is needed.
func (s *Store) windowEfficiencies(ctx context.Context, base int) ([]effRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region, input_comm, tech, vintage, output_comm, lifetime
		FROM MyopicEfficiency
		WHERE vintage + lifetime > ?
	`, base)
	if err != nil {
		return nil, fmt.Errorf("query myopic efficiencies: %w", err)
	}
	return scanEffRows(rows)
}

func scanEffRows(rows *sql.Rows) ([]effRow, error) {
	defer rows.Close()
	var out []effRow
	for rows.Next() {
		var e effRow
		if err := rows.Scan(&e.region, &e.input, &e.tech, &e.vintage, &e.output, &e.lifetime); err != nil {
			return nil, fmt.Errorf("scan efficiency: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate efficiencies: %w", err)
	}
	return out, nil
}

// linkedTechs returns the linked-tech pairs whose driver and driven
// technologies both survived the lifetime screen.
func (s *Store) linkedTechs(ctx context.Context, living network.StringSet) (map[network.LinkedTech]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT primary_region, primary_tech, emis_comm, driven_tech FROM LinkedTech
	`)
	if err != nil {
		return nil, fmt.Errorf("query linked techs: %w", err)
	}
	defer rows.Close()

	linked := map[network.LinkedTech]struct{}{}
	for rows.Next() {
		var region, driver, emission, driven string
		if err := rows.Scan(&region, &driver, &emission, &driven); err != nil {
			return nil, fmt.Errorf("scan linked tech: %w", err)
		}
		lt := network.LinkedTech{
			Region:   network.Normalize(region),
			Driver:   network.Normalize(driver),
			Emission: network.Normalize(emission),
			Driven:   network.Normalize(driven),
		}
		if living.Has(lt.Driver) && living.Has(lt.Driven) {
			linked[lt] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate linked techs: %w", err)
	}
	return linked, nil
}

// LoadSnapshot reads the tweakable parameter tables for the whole horizon.
// Every parameter registers even when its table is empty, so membership
// checks stay meaningful.
func (s *Store) LoadSnapshot(ctx context.Context) (*dataset.Snapshot, error) {
	snap := dataset.New()
	if err := s.fillEfficiency(ctx, snap, `
		SELECT region, input_comm, tech, vintage, output_comm, efficiency FROM Efficiency
	`); err != nil {
		return nil, err
	}
	if err := s.fillDemand(ctx, snap, `
		SELECT region, period, commodity, demand FROM Demand
	`); err != nil {
		return nil, err
	}
	if err := s.fillRTV(ctx, snap, "ExistingCapacity", `
		SELECT region, tech, vintage, capacity FROM ExistingCapacity
	`); err != nil {
		return nil, err
	}
	if err := s.fillRTV(ctx, snap, "CostInvest", `
		SELECT region, tech, vintage, cost FROM CostInvest
	`); err != nil {
		return nil, err
	}
	if err := s.fillRPTV(ctx, snap, "CostFixed", `
		SELECT region, period, tech, vintage, cost FROM CostFixed
	`); err != nil {
		return nil, err
	}
	if err := s.fillRPTV(ctx, snap, "CostVariable", `
		SELECT region, period, tech, vintage, cost FROM CostVariable
	`); err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadWindowSnapshot reads the parameter tables bounded to one myopic
// window. Efficiencies come from MyopicEfficiency; starting capacity is the
// prior window's net capacity under the given scenario, merged with the
// original existing stock; period-indexed costs and demands are clipped to
// the window and investment costs to vintages the window can build.
func (s *Store) LoadWindowSnapshot(ctx context.Context, scenario string, span PeriodSpan) (*dataset.Snapshot, error) {
	snap := dataset.New()
	if err := s.fillEfficiency(ctx, snap, `
		SELECT region, input_comm, tech, vintage, output_comm, efficiency
		FROM MyopicEfficiency
		WHERE vintage + lifetime > ?
	`, span.Base); err != nil {
		return nil, err
	}
	if err := s.fillDemand(ctx, snap, `
		SELECT region, period, commodity, demand FROM Demand
		WHERE period >= ? AND period <= ?
	`, span.Base, span.LastDemandYear); err != nil {
		return nil, err
	}
	if err := s.fillWindowCapacity(ctx, snap, scenario, span.Base); err != nil {
		return nil, err
	}
	if err := s.fillRTV(ctx, snap, "CostInvest", `
		SELECT region, tech, vintage, cost FROM CostInvest
		WHERE vintage >= ?
	`, span.Base); err != nil {
		return nil, err
	}
	if err := s.fillRPTV(ctx, snap, "CostFixed", `
		SELECT region, period, tech, vintage, cost FROM CostFixed
		WHERE period >= ? AND period <= ?
	`, span.Base, span.LastDemandYear); err != nil {
		return nil, err
	}
	if err := s.fillRPTV(ctx, snap, "CostVariable", `
		SELECT region, period, tech, vintage, cost FROM CostVariable
		WHERE period >= ? AND period <= ?
	`, span.Base, span.LastDemandYear); err != nil {
		return nil, err
	}
	return snap, nil
}

// fillWindowCapacity loads the capacity in place at the window base: the
// net capacity the prior period ended with under this scenario, plus the
// original existing stock. With no prior period, the stock stands alone.
func (s *Store) fillWindowCapacity(ctx context.Context, snap *dataset.Snapshot, scenario string, base int) error {
	var prior sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(period) FROM TimePeriod WHERE period < ?
	`, base).Scan(&prior)
	if err != nil {
		return fmt.Errorf("query prior period: %w", err)
	}
	if !prior.Valid {
		return s.fillRTV(ctx, snap, "ExistingCapacity", `
			SELECT region, tech, vintage, capacity FROM ExistingCapacity
		`)
	}
	return s.fillRTV(ctx, snap, "ExistingCapacity", `
		SELECT region, tech, vintage, capacity FROM OutputNetCapacity
		WHERE period = ? AND scenario = ?
		UNION
		SELECT region, tech, vintage, capacity FROM ExistingCapacity
	`, prior.Int64, scenario)
}

// fillRTV loads a (region, tech, vintage) indexed parameter.
func (s *Store) fillRTV(ctx context.Context, snap *dataset.Snapshot, param, query string, args ...any) error {
	tbl := snap.Ensure(param)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", param, err)
	}
	defer rows.Close()
	for rows.Next() {
		var region, tech string
		var vintage int
		var value float64
		if err := rows.Scan(&region, &tech, &vintage, &value); err != nil {
			return fmt.Errorf("scan %s: %w", param, err)
		}
		tbl[dataset.KeyOf(region, tech, strconv.Itoa(vintage))] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", param, err)
	}
	return nil
}

// fillRPTV loads a (region, period, tech, vintage) indexed parameter.
func (s *Store) fillRPTV(ctx context.Context, snap *dataset.Snapshot, param, query string, args ...any) error {
	tbl := snap.Ensure(param)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", param, err)
	}
	defer rows.Close()
	for rows.Next() {
		var region, tech string
		var period, vintage int
		var value float64
		if err := rows.Scan(&region, &period, &tech, &vintage, &value); err != nil {
			return fmt.Errorf("scan %s: %w", param, err)
		}
		tbl[dataset.KeyOf(region, strconv.Itoa(period), tech, strconv.Itoa(vintage))] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", param, err)
	}
	return nil
}

// fillEfficiency loads the five-field efficiency index.
func (s *Store) fillEfficiency(ctx context.Context, snap *dataset.Snapshot, query string, args ...any) error {
	tbl := snap.Ensure("Efficiency")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query Efficiency: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var region, input, tech, output string
		var vintage int
		var value float64
		if err := rows.Scan(&region, &input, &tech, &vintage, &output, &value); err != nil {
			return fmt.Errorf("scan Efficiency: %w", err)
		}
		tbl[dataset.KeyOf(region, input, tech, strconv.Itoa(vintage), output)] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate Efficiency: %w", err)
	}
	return nil
}

// fillDemand loads the (region, period, commodity) demand parameter.
func (s *Store) fillDemand(ctx context.Context, snap *dataset.Snapshot, query string, args ...any) error {
	tbl := snap.Ensure("Demand")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query Demand: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var region, commodity string
		var period int
		var value float64
		if err := rows.Scan(&region, &period, &commodity, &value); err != nil {
			return fmt.Errorf("scan Demand: %w", err)
		}
		tbl[dataset.KeyOf(region, strconv.Itoa(period), commodity)] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate Demand: %w", err)
	}
	return nil
}

// rtvScreen maps the parameters screened by surviving (region, tech,
// vintage) instances to the key positions holding those three fields.
var rtvScreen = map[string][3]int{
	"ExistingCapacity": {0, 1, 2},
	"CostInvest":       {0, 1, 2},
	"CostFixed":        {0, 2, 3},
	"CostVariable":     {0, 2, 3},
}

// ScreenSnapshot drops parameter rows that reference technology instances
// pruned by network analysis. Efficiency is screened by the full five-field
// index and the capacity and cost tables by (region, tech, vintage); Demand
// is never screened, because an unservable demand must fail the solve
// rather than vanish from it. Lookups normalize names the same way the
// network loader does.
func ScreenSnapshot(snap *dataset.Snapshot, f *network.Filters) {
	if tbl, ok := snap.Table("Efficiency"); ok {
		for k := range tbl {
			fl := k.Fields()
			v, err := strconv.Atoi(fl[3])
			if err != nil || !f.HasRITVO(
				network.Normalize(fl[0]), network.Normalize(fl[1]),
				network.Normalize(fl[2]), v, network.Normalize(fl[4]),
			) {
				delete(tbl, k)
			}
		}
	}
	for param, pos := range rtvScreen {
		tbl, ok := snap.Table(param)
		if !ok {
			continue
		}
		for k := range tbl {
			fl := k.Fields()
			v, err := strconv.Atoi(fl[pos[2]])
			if err != nil || !f.HasRTV(network.Normalize(fl[pos[0]]), network.Normalize(fl[pos[1]]), v) {
				delete(tbl, k)
			}
		}
	}
}
