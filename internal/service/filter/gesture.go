package filter

import (
	"sync"

	"chitcam/internal/model"
)

// DefaultDragThreshold is the horizontal distance one filter step needs.
const DefaultDragThreshold = 20

// DragTracker turns horizontal drag deltas into selector steps.
// Dragging right past the threshold selects the previous filter, dragging
// left selects the next one. The accumulator resets after every step.
type DragTracker struct {
	mu        sync.Mutex
	selector  *Selector
	threshold float64
	acc       float64
}

// NewDragTracker creates a tracker. A non-positive threshold uses the default.
func NewDragTracker(selector *Selector, threshold float64) *DragTracker {
	if threshold <= 0 {
		threshold = DefaultDragThreshold
	}
	return &DragTracker{selector: selector, threshold: threshold}
}

// Drag feeds one delta. It returns the filter selected after the delta and
// whether the selection changed.
func (d *DragTracker) Drag(dx float64) (model.Filter, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.acc += dx
	switch {
	case d.acc > d.threshold:
		d.acc = 0
		return d.selector.Previous(), true
	case d.acc < -d.threshold:
		d.acc = 0
		return d.selector.Next(), true
	default:
		return d.selector.Current(), false
	}
}

// Reset clears a partial drag, e.g. when the finger lifts.
func (d *DragTracker) Reset() {
	d.mu.Lock()
	d.acc = 0
	d.mu.Unlock()
}
