// Package enginetest provides a scripted engine for tests.
package enginetest

import (
	"context"
	"sync"
	"time"

	"github.com/fyrsmithlabs/linkrank/internal/engine"
)

// Reply scripts one StreamResponse call.
type Reply struct {
	// Fragments are delivered in order, Delay apart.
	Fragments []string
	Delay     time.Duration

	// Hold, when non-nil, is waited on after the fragments and before
	// completing.
	Hold <-chan struct{}

	// Hang blocks after the fragments until the call is canceled.
	Hang bool

	// Err is returned after the fragments instead of signalling done.
	Err error
}

// Engine replays scripted replies. Once the script is exhausted the last
// reply repeats. The zero value completes immediately with no text.
type Engine struct {
	mu       sync.Mutex
	replies  []Reply
	calls    int
	prompts  []string
	cancels  int
	inflight chan struct{}
	active   int
	maxSeen  int
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine playing replies in order.
func New(replies ...Reply) *Engine {
	return &Engine{replies: replies}
}

// StreamResponse implements engine.Engine.
func (e *Engine) StreamResponse(ctx context.Context, prompt string, onFragment engine.FragmentFunc) error {
	reply, canceled := e.start(prompt)
	defer e.finish()

	wait := func(d time.Duration, ch <-chan struct{}) error {
		var timer <-chan time.Time
		if d > 0 {
			t := time.NewTimer(d)
			defer t.Stop()
			timer = t.C
		}
		if timer == nil && ch == nil {
			return nil
		}
		select {
		case <-timer:
			return nil
		case <-ch:
			return nil
		case <-canceled:
			return engine.ErrCanceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, f := range reply.Fragments {
		if err := wait(reply.Delay, nil); err != nil {
			return err
		}
		onFragment(f, false)
	}
	if reply.Hold != nil {
		if err := wait(0, reply.Hold); err != nil {
			return err
		}
	}
	if reply.Hang {
		select {
		case <-canceled:
			return engine.ErrCanceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if reply.Err != nil {
		return reply.Err
	}
	onFragment("", true)
	return nil
}

// Cancel implements engine.Engine.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	if e.inflight != nil {
		close(e.inflight)
		e.inflight = nil
	}
}

func (e *Engine) start(prompt string) (Reply, <-chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var r Reply
	switch {
	case len(e.replies) == 0:
	case e.calls < len(e.replies):
		r = e.replies[e.calls]
	default:
		r = e.replies[len(e.replies)-1]
	}
	e.calls++
	e.prompts = append(e.prompts, prompt)
	e.active++
	if e.active > e.maxSeen {
		e.maxSeen = e.active
	}
	e.inflight = make(chan struct{})
	return r, e.inflight
}

func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active--
}

// Calls returns the number of StreamResponse calls.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Prompts returns every prompt received, in call order.
func (e *Engine) Prompts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.prompts...)
}

// Cancels returns the number of Cancel calls.
func (e *Engine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// MaxConcurrent returns the largest number of overlapping calls observed.
func (e *Engine) MaxConcurrent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxSeen
}
