// Package store provides SQLite-backed storage for energy system model
// databases: the input parameter tables, the Output* result tables, and
// the MyopicEfficiency working table for windowed runs.
//
// The store covers three concerns:
//   - Loading: materializing the commodity network (network.ModelData)
//     and the parameter snapshot (dataset.Snapshot) from input tables,
//     optionally restricted to a myopic window.
//   - Writing: persisting result records and change records per scenario
//     label through Writer, which implements run.ResultSink.
//   - Myopic bookkeeping: the MyopicEfficiency lifecycle and the
//     period-scoped clearing that lets overlapping windows overwrite
//     their provisional results.
//
// # Single-writer discipline
//
// The connection pool is capped at one open connection and every write
// flows through the coordinating goroutine; workers never touch the
// database. This avoids SQLITE_BUSY contention entirely.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Table and column names follow the V3 schema naming (singular table
// names: Commodity, TimePeriod, Technology, Efficiency, ...).
package store
