package store

import (
	"context"
	"database/sql"
	"fmt"
)

// myopicPeriodTables carry a period column and are cleared from a period
// forward when a window is re-solved.
var myopicPeriodTables = []string{
	"OutputCost",
	"OutputCurtailment",
	"OutputEmission",
	"OutputFlowIn",
	"OutputFlowOut",
	"OutputNetCapacity",
	"OutputRetiredCapacity",
}

// InitMyopicEfficiency rebuilds the MyopicEfficiency table from scratch,
// seeding it with every efficiency entry of an existing vintage. Seeded
// rows carry base year -1; lifetimes resolve process first, then tech,
// then DefaultLifetime.
func (s *Store) InitMyopicEfficiency(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM MyopicEfficiency`); err != nil {
		return fmt.Errorf("reset myopic efficiency: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO MyopicEfficiency
		SELECT -1, Efficiency.region, Efficiency.input_comm, Efficiency.tech,
		       Efficiency.vintage, Efficiency.output_comm, Efficiency.efficiency,
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
		WHERE TimePeriod.flag = 'e'
	`, DefaultLifetime)
	if err != nil {
		return fmt.Errorf("seed myopic efficiency: %w", err)
	}
	return nil
}

// UpdateMyopicEfficiency readies the MyopicEfficiency table for the given
// window. It drops rows from the window base forward, prunes processes the
// prior solve left without capacity, and inserts the vintages the window
// newly brings into view.
func (s *Store) UpdateMyopicEfficiency(ctx context.Context, scenario string, span PeriodSpan) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM MyopicEfficiency WHERE vintage >= ?
	`, span.Base)
	if err != nil {
		return fmt.Errorf("drop myopic vintages: %w", err)
	}

	var prior sql.NullInt64
	var flag sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(period), flag FROM TimePeriod WHERE period < ?
	`, span.Base).Scan(&prior, &flag)
	if err != nil {
		return fmt.Errorf("query prior period: %w", err)
	}
	// A prior optimization period has net-capacity results; anything the
	// solve retired or never built is gone for good. Unlimited-capacity
	// techs carry no capacity rows and are exempt.
	if flag.Valid && flag.String == "f" {
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM MyopicEfficiency
			WHERE (region, tech, vintage) NOT IN
			      (SELECT region, tech, vintage FROM OutputNetCapacity
			       WHERE period = ? AND scenario = ?)
			  AND tech NOT IN (SELECT tech FROM Technology WHERE unlim_cap > 0)
		`, prior.Int64, scenario)
		if err != nil {
			return fmt.Errorf("prune unbuilt processes: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO MyopicEfficiency
		SELECT ?, Efficiency.region, Efficiency.input_comm, Efficiency.tech,
		       Efficiency.vintage, Efficiency.output_comm, Efficiency.efficiency,
		       coalesce(LifetimeProcess.lifetime, LifetimeTech.lifetime, ?) AS lifetime
		FROM Efficiency
		LEFT JOIN LifetimeProcess
		     ON Efficiency.region = LifetimeProcess.region
		    AND Efficiency.tech = LifetimeProcess.tech
		    AND Efficiency.vintage = LifetimeProcess.vintage
		LEFT JOIN LifetimeTech
		     ON Efficiency.region = LifetimeTech.region
		    AND Efficiency.tech = LifetimeTech.tech
		WHERE Efficiency.vintage >= ? AND Efficiency.vintage <= ?
	`, span.Base, DefaultLifetime, span.Base, span.LastDemandYear)
	if err != nil {
		return fmt.Errorf("insert visible vintages: %w", err)
	}
	return nil
}

// ClearResultsAfter removes the scenario's results for all periods at or
// after the given period. Built capacity is vintage-indexed and is cleared
// by vintage instead.
func (s *Store) ClearResultsAfter(ctx context.Context, scenario string, period int) error {
	for _, table := range myopicPeriodTables {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE period >= ? AND scenario = ?`, period, scenario)
		if err != nil {
			return fmt.Errorf("clear %s from %d: %w", table, period, err)
		}
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM OutputBuiltCapacity WHERE vintage >= ? AND scenario = ?
	`, period, scenario)
	if err != nil {
		return fmt.Errorf("clear OutputBuiltCapacity from %d: %w", period, err)
	}
	return nil
}

// ClearMyopicResults removes all prior results for the scenario and its
// per-window labels before a fresh myopic sequence.
func (s *Store) ClearMyopicResults(ctx context.Context, scenario string) error {
	pattern := scenario + "-%"
	for _, table := range basicOutputTables {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE scenario = ? OR scenario LIKE ?`, scenario, pattern)
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// ClearObjectives drops the scenario's objective rows. Window objectives
// cover partial horizons and do not add up to anything meaningful.
func (s *Store) ClearObjectives(ctx context.Context, scenario string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM OutputObjective WHERE scenario = ? OR scenario LIKE ?
	`, scenario, scenario+"-%")
	if err != nil {
		return fmt.Errorf("clear objectives: %w", err)
	}
	return nil
}
