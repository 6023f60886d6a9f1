package mc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jeff-ws/temoa/internal/dataset"
)

// Row is one validated line of a run-settings file:
//
//	run,param,index,mod,value,notes
//
// Rows sharing a run number belong to the same run. The index expression
// may use "|" between fields, "/" for alternation within a field, "*" as
// a wildcard field, and optional surrounding parentheses.
type Row struct {
	Run        int
	Param      string
	Indices    string
	Adjustment Adjustment
	Value      float64
	Notes      string
}

// Tweaks explodes the row's index expression into concrete tweaks, one
// per combination of "/" alternatives, in field order.
func (r Row) Tweaks() []Tweak {
	expr := strings.NewReplacer("(", "", ")", "").Replace(r.Indices)
	positions := strings.Split(expr, "|")
	alts := make([][]string, len(positions))
	for i, tok := range positions {
		for _, sub := range strings.Split(tok, "/") {
			alts[i] = append(alts[i], strings.TrimSpace(sub))
		}
	}

	var tweaks []Tweak
	fields := make([]string, len(alts))
	var walk func(pos int)
	walk = func(pos int) {
		if pos == len(alts) {
			tweaks = append(tweaks, Tweak{
				Param:      r.Param,
				Index:      dataset.KeyOf(fields...),
				Adjustment: r.Adjustment,
				Value:      r.Value,
			})
			return
		}
		for _, alt := range alts[pos] {
			fields[pos] = alt
			walk(pos + 1)
		}
	}
	walk(0)
	return tweaks
}

// Settings is a parsed and validated run-settings file. Runs keep the
// order of their first appearance in the file.
type Settings struct {
	rows   []Row
	order  []int
	tweaks map[int][]Tweak
}

// ParseSettings reads run-settings CSV from r, validating each row
// against the snapshot's parameter registry. A leading header row
// ("run,...") is skipped.
func ParseSettings(r io.Reader, data *dataset.Snapshot) (*Settings, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	s := &Settings{tweaks: map[int][]Tweak{}}
	ordinal := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mc: read run settings: %w", err)
		}
		if ordinal == 0 && len(fields) > 0 && strings.EqualFold(strings.TrimSpace(fields[0]), "run") {
			continue
		}
		ordinal++
		row, err := parseRow(ordinal, fields, data)
		if err != nil {
			return nil, err
		}
		if _, seen := s.tweaks[row.Run]; !seen {
			s.order = append(s.order, row.Run)
		}
		s.rows = append(s.rows, row)
		s.tweaks[row.Run] = append(s.tweaks[row.Run], row.Tweaks()...)
	}
	return s, nil
}

// LoadSettings reads and parses the run-settings file at path.
func LoadSettings(path string, data *dataset.Snapshot) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mc: open run settings: %w", err)
	}
	defer f.Close()
	return ParseSettings(f, data)
}

// Rows returns the parsed rows in file order.
func (s *Settings) Rows() []Row {
	return append([]Row(nil), s.rows...)
}

// Runs returns the distinct run numbers in order of first appearance.
func (s *Settings) Runs() []int {
	return append([]int(nil), s.order...)
}

// RunTweaks returns the tweaks of one run, in file order.
func (s *Settings) RunTweaks(run int) []Tweak {
	return append([]Tweak(nil), s.tweaks[run]...)
}

func parseRow(ordinal int, fields []string, data *dataset.Snapshot) (Row, error) {
	if len(fields) != 6 {
		return Row{}, fmt.Errorf("mc: row %d: expected 6 fields (run,param,index,mod,value,notes), got %d",
			ordinal, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	runIdx, err := strconv.Atoi(fields[0])
	if err != nil {
		return Row{}, fmt.Errorf("mc: row %d: run number %q must be an integer", ordinal, fields[0])
	}
	value, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Row{}, fmt.Errorf("mc: row %d: value %q must be numeric", ordinal, fields[4])
	}
	row := Row{
		Run:        runIdx,
		Param:      fields[1],
		Indices:    fields[2],
		Adjustment: Adjustment(fields[3]),
		Value:      value,
		Notes:      fields[5],
	}
	if !data.HasParam(row.Param) {
		return Row{}, fmt.Errorf("mc: row %d: param %q is not present in the input dataset", ordinal, row.Param)
	}
	if !row.Adjustment.valid() {
		return Row{}, fmt.Errorf("mc: row %d: adjustment %q must be one of r/a/s", ordinal, fields[3])
	}
	if strings.Contains(row.Indices, "||") {
		return Row{}, fmt.Errorf("mc: row %d: index expression %q has an empty field; use the wildcard %q",
			ordinal, row.Indices, dataset.Wildcard)
	}
	return row, nil
}
