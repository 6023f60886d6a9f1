// Package mc generates Monte Carlo work items. A run-settings file names,
// per run, a set of perturbations ("tweaks") to apply to the base dataset;
// the generator clones the base snapshot for each run, applies that run's
// tweaks, and yields the result as a work item for the coordinator.
package mc

import (
	"fmt"

	"github.com/jeff-ws/temoa/internal/dataset"
)

// Adjustment selects how a tweak's value combines with the cell's base
// value.
type Adjustment string

const (
	// AdjustRelative scales the base value: new = old * (1 + value).
	// A value of -0.4 reads as a 40% discount.
	AdjustRelative Adjustment = "r"
	// AdjustAbsolute shifts the base value: new = old + value.
	AdjustAbsolute Adjustment = "a"
	// AdjustSubstitute replaces the base value: new = value.
	AdjustSubstitute Adjustment = "s"
)

func (a Adjustment) valid() bool {
	switch a {
	case AdjustRelative, AdjustAbsolute, AdjustSubstitute:
		return true
	}
	return false
}

// Tweak is one perturbation of a parameter. Index may carry wildcard
// fields, in which case the tweak fans out to every matching cell when
// applied.
type Tweak struct {
	Param      string
	Index      dataset.Key
	Adjustment Adjustment
	Value      float64
}

func (tw Tweak) apply(old float64) float64 {
	switch tw.Adjustment {
	case AdjustRelative:
		return old * (1 + tw.Value)
	case AdjustAbsolute:
		return old + tw.Value
	case AdjustSubstitute:
		return tw.Value
	}
	panic(fmt.Sprintf("mc: invalid adjustment %q", tw.Adjustment))
}

func (tw Tweak) String() string {
	return fmt.Sprintf("%s[%s] %s %g", tw.Param, tw.Index, tw.Adjustment, tw.Value)
}
