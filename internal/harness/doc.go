// Package harness loads commodity-network fixtures from YAML and drives
// them through the feasibility analysis, so pruning behavior can be pinned
// down by golden reports instead of hand-assembled graph literals.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: six_tech_reference
//	description: "Two survivors, four orphans, one unsupported demand."
//	source_commodities: [ethos]
//	demand_commodities:
//	  - {region: R1, period: 2020, commodities: [elc, heat]}
//	processes:
//	  - {region: R1, input: ethos, tech: mine, vintage: 2015, output: coal, periods: [2020]}
//	  - {region: R1, input: coal, tech: plant, vintage: 2015, output: elc, periods: [2020]}
//	linked_techs:
//	  - {region: R1, driver: plant, emission: co2, driven: scrubber}
//	expect:
//	  orphans: 4
//	  unsupported_demands: 1
//	  survivors:
//	    - {region: R1, period: 2020, count: 2}
//
// Each process entry is one (input, tech, vintage, output) edge, placed in
// the bucket of every period it lists. Region names containing "-" denote
// exchange buckets, which the analysis leaves untouched.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/six_tech_reference.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := harness.Run(scenario, logger)
//
// The expect block is verified with scenario.Verify(res); the rendered
// report is compared against testdata/golden/<name>.golden via
// RunWithGolden. Regenerate goldens with:
//
//	go test ./internal/harness -update
package harness
