package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Recorder keeps every delivered snapshot in order.
type Recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	notify    chan struct{}
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// Deliver implements Consumer.
func (r *Recorder) Deliver(_ context.Context, s Snapshot) error {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, s)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// All returns the snapshots delivered so far.
func (r *Recorder) All() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snapshots...)
}

// ForRequest returns the snapshots of one request.
func (r *Recorder) ForRequest(id uint64) []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, s := range r.snapshots {
		if s.RequestID == id {
			out = append(out, s)
		}
	}
	return out
}

// Finals returns the final snapshots.
func (r *Recorder) Finals() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Snapshot
	for _, s := range r.snapshots {
		if s.Final {
			out = append(out, s)
		}
	}
	return out
}

// Notify is signalled after each delivery; signals coalesce.
func (r *Recorder) Notify() <-chan struct{} {
	return r.notify
}

// JSONLines writes one JSON document per snapshot.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder

	// FinalOnly suppresses partial snapshots.
	FinalOnly bool
}

// NewJSONLines writes to w.
func NewJSONLines(w io.Writer, finalOnly bool) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w), FinalOnly: finalOnly}
}

// Deliver implements Consumer.
func (j *JSONLines) Deliver(_ context.Context, s Snapshot) error {
	if j.FinalOnly && !s.Final {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(s); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
