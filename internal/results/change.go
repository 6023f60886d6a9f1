package results

import (
	"fmt"

	"github.com/jeff-ws/temoa/internal/dataset"
)

// ChangeRecord documents one applied perturbation: which cell of which
// parameter moved, and from what to what. The writer persists these so a
// run's inputs can be reconstructed from its outputs.
type ChangeRecord struct {
	Run      int
	Param    string
	Index    dataset.Key
	OldValue float64
	NewValue float64
}

// String renders the change for logs.
func (c ChangeRecord) String() string {
	return fmt.Sprintf("run %d: %s[%s] %g -> %g", c.Run, c.Param, c.Index, c.OldValue, c.NewValue)
}
