// Package debounce coalesces bursts of hotplug events into single settled
// signals. Hotplug buses fire several redundant notifications per physical
// action; one logical recheck per burst is enough.
package debounce

import (
	"sync"
	"time"
)

// Debouncer emits at most one settled signal per burst of triggers. The
// quiescence window starts on the first trigger of an idle period and resets
// on every further trigger. Each trigger arms its own timer carrying the
// generation it observed; a fired timer only emits when its generation is
// still current, which handles "reset on new event" without explicit timer
// cancellation.
type Debouncer struct {
	window time.Duration
	emit   func()

	mu         sync.Mutex
	generation uint64
	stopped    bool
}

// New creates a debouncer that calls emit after the window elapses without
// further triggers.
func New(window time.Duration, emit func()) *Debouncer {
	return &Debouncer{window: window, emit: emit}
}

// Trigger records a raw event and (re)opens the quiescence window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	time.AfterFunc(d.window, func() {
		d.mu.Lock()
		current := !d.stopped && d.generation == gen
		d.mu.Unlock()

		if current {
			d.emit()
		}
	})
}

// Stop aborts any pending window without emitting. Further triggers are
// ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
