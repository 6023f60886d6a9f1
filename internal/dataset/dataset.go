// Package dataset holds in-memory snapshots of the model's parameter
// tables: every tweakable input cell, addressable by parameter name and
// index key. A snapshot is loaded once from the database, cloned per run,
// and perturbed in the clone; the base snapshot is never mutated.
package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// sep joins index fields into a canonical key. Index values come from SQL
// identifier and period columns, which never contain the separator.
const sep = "|"

// Wildcard matches any single index field in a pattern key.
const Wildcard = "*"

// Key is the canonical form of a parameter's index tuple: the index fields
// in column order, pipe-joined. KeyOf("R1", "coal_plant", "2020") addresses
// the cell indexed (R1, coal_plant, 2020).
type Key string

// KeyOf joins index fields into a Key.
func KeyOf(fields ...string) Key {
	return Key(strings.Join(fields, sep))
}

// Fields splits the key back into its index fields.
func (k Key) Fields() []string {
	return strings.Split(string(k), sep)
}

// Arity returns the number of index fields.
func (k Key) Arity() int {
	return strings.Count(string(k), sep) + 1
}

// Matches reports whether the key satisfies the pattern: equal arity, and
// every pattern field either equals the key's field or is the Wildcard.
func (k Key) Matches(pattern Key) bool {
	kf := k.Fields()
	pf := pattern.Fields()
	if len(kf) != len(pf) {
		return false
	}
	for i, p := range pf {
		if p != Wildcard && p != kf[i] {
			return false
		}
	}
	return true
}

// Table is one parameter's cells, keyed by index tuple.
type Table map[Key]float64

// Clone returns an independent copy of the table.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// MatchKeys returns the sorted keys satisfying the pattern.
func (t Table) MatchKeys(pattern Key) []Key {
	var out []Key
	for k := range t {
		if k.Matches(pattern) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot is a full set of parameter tables.
type Snapshot struct {
	tables map[string]Table
}

// New returns an empty snapshot.
func New() *Snapshot {
	return &Snapshot{tables: map[string]Table{}}
}

// Ensure returns the named table, creating it empty if absent. Loaders use
// it so that a parameter with zero rows still registers as tweakable.
func (s *Snapshot) Ensure(param string) Table {
	t, ok := s.tables[param]
	if !ok {
		t = Table{}
		s.tables[param] = t
	}
	return t
}

// Table returns the named table and whether it exists.
func (s *Snapshot) Table(param string) (Table, bool) {
	t, ok := s.tables[param]
	return t, ok
}

// HasParam reports whether the parameter is present in the snapshot.
func (s *Snapshot) HasParam(param string) bool {
	_, ok := s.tables[param]
	return ok
}

// ParamNames returns the sorted parameter names.
func (s *Snapshot) ParamNames() []string {
	out := make([]string, 0, len(s.tables))
	for name := range s.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Set writes one cell, creating the table if needed.
func (s *Snapshot) Set(param string, k Key, v float64) {
	s.Ensure(param)[k] = v
}

// Get reads one cell.
func (s *Snapshot) Get(param string, k Key) (float64, bool) {
	v, ok := s.tables[param][k]
	return v, ok
}

// Clone returns a deep copy. Per-run perturbations go into clones so the
// base snapshot stays pristine for the next run.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{tables: make(map[string]Table, len(s.tables))}
	for name, t := range s.tables {
		out.tables[name] = t.Clone()
	}
	return out
}

// Len returns the total number of cells across all tables.
func (s *Snapshot) Len() int {
	n := 0
	for _, t := range s.tables {
		n += len(t)
	}
	return n
}

// String summarizes the snapshot for logs.
func (s *Snapshot) String() string {
	return fmt.Sprintf("snapshot{params: %d, cells: %d}", len(s.tables), s.Len())
}
