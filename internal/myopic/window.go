// Package myopic solves a model horizon as a sequence of overlapping
// windows. Each window sees a limited number of periods ahead, and
// capacity built in one window becomes existing capacity for the next,
// threaded through the MyopicEfficiency table. The windows run strictly
// in order; there is no parallelism to exploit between them.
package myopic

import (
	"fmt"
	"sort"

	"github.com/gammazero/deque"

	"github.com/jeff-ws/temoa/internal/store"
)

// Window is one myopic solve. The model sees periods from BaseYear through
// LastYear, demand runs through LastDemandYear, and the next window starts
// at StepYear. LastYear itself is a lifetime boundary only and is never
// solved.
type Window struct {
	BaseYear       int
	StepYear       int
	LastDemandYear int
	LastYear       int
}

// Span bounds the window's data loads.
func (w Window) Span() store.PeriodSpan {
	return store.PeriodSpan{Base: w.BaseYear, LastDemandYear: w.LastDemandYear}
}

func (w Window) String() string {
	return fmt.Sprintf("[base %d step %d demand %d horizon %d]",
		w.BaseYear, w.StepYear, w.LastDemandYear, w.LastYear)
}

// CharacterizeRun splits the future periods into solve windows. Each
// window starts stepSize periods after the previous one and sees viewDepth
// periods ahead, with both shrinking near the end so the final windows
// still close on the horizon boundary. The last period is that boundary
// and never becomes a base. Windows are queued first-solved at the back,
// for consumption with PopBack.
func CharacterizeRun(periods []int, stepSize, viewDepth int) (*deque.Deque[Window], error) {
	if stepSize < 1 {
		return nil, fmt.Errorf("myopic: step size %d, want at least 1", stepSize)
	}
	if viewDepth < stepSize {
		return nil, fmt.Errorf("myopic: view depth %d is shorter than step size %d", viewDepth, stepSize)
	}
	if len(periods) < 3 {
		return nil, fmt.Errorf("myopic: found %d future periods, need at least 3", len(periods))
	}
	fp := append([]int(nil), periods...)
	sort.Ints(fp)

	var queue deque.Deque[Window]
	lastIdx := len(fp) - 1
	for idx := 0; idx < lastIdx; idx += stepSize {
		depth := min(viewDepth, lastIdx-idx)
		step := min(stepSize, lastIdx-idx)
		if depth < 1 {
			break
		}
		queue.PushFront(Window{
			BaseYear:       fp[idx],
			StepYear:       fp[idx+step],
			LastDemandYear: fp[idx+depth-1],
			LastYear:       fp[idx+depth],
		})
	}
	return &queue, nil
}
