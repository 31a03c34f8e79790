package lifecycle

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid triggers: each Trigger restarts the quiet-period
// timer and only the last trigger's function runs once the window passes
// without another trigger.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending bool
	stopped bool
}

// NewDebouncer creates a Debouncer. A non-positive window fires on the next
// timer tick.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Trigger schedules fn, replacing any pending function.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.seq++
	seq := d.seq
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		fire := !d.stopped && seq == d.seq
		if fire {
			d.pending = false
		}
		d.mu.Unlock()
		if fire {
			fn()
		}
	})
}

// Pending reports whether a trigger is waiting for its window to pass.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any pending trigger; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
