package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// ErrStale is returned by Gate.Acquire when the waiting request was
// superseded before the engine became free.
var ErrStale = errors.New("request superseded")

// Gate admits one engine conversation at a time.
type Gate struct {
	preempt bool
	abort   func()

	mu       sync.Mutex
	holder   *Lease
	released chan struct{}
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPreemption lets a current request abort a holder whose token went
// stale. abort is invoked once per preempted lease, after its context has
// been cancelled; it is typically the engine's Cancel.
func WithPreemption(abort func()) GateOption {
	return func(g *Gate) {
		g.preempt = true
		g.abort = abort
	}
}

// NewGate creates a free Gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire waits until the gate is free and takes it for tok. While waiting,
// a stale holder is aborted when preemption is enabled. Acquire returns
// ErrStale if tok is superseded while waiting, or ctx's error.
func (g *Gate) Acquire(ctx context.Context, tok Token) (*Lease, error) {
	for {
		if !tok.Current() {
			return nil, ErrStale
		}

		g.mu.Lock()
		if g.holder == nil {
			lctx, cancel := context.WithCancel(ctx)
			l := &Lease{ctx: lctx, cancel: cancel, tok: tok, gate: g}
			g.holder = l
			g.released = make(chan struct{})
			g.mu.Unlock()
			return l, nil
		}
		holder := g.holder
		wait := g.released
		preempt := g.preempt && !holder.tok.Current()
		g.mu.Unlock()

		if preempt {
			holder.Abort()
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Busy reports whether a lease is held.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder != nil
}

// Lease is the right to run one engine conversation.
type Lease struct {
	ctx    context.Context
	cancel context.CancelFunc
	tok    Token
	gate   *Gate

	abortOnce   sync.Once
	releaseOnce sync.Once
	aborted     bool
}

// Context is cancelled when the lease is aborted or released.
func (l *Lease) Context() context.Context { return l.ctx }

// Token returns the token the lease was acquired for.
func (l *Lease) Token() Token { return l.tok }

// Abort cancels the lease context and invokes the gate's abort hook. The
// lease stays held until Release.
func (l *Lease) Abort() {
	l.abortOnce.Do(func() {
		l.gate.mu.Lock()
		l.aborted = true
		l.gate.mu.Unlock()

		l.cancel()
		if l.gate.abort != nil {
			l.gate.abort()
		}
	})
}

// Aborted reports whether Abort was called.
func (l *Lease) Aborted() bool {
	l.gate.mu.Lock()
	defer l.gate.mu.Unlock()
	return l.aborted
}

// Release frees the gate. It is safe to call more than once.
func (l *Lease) Release() {
	l.releaseOnce.Do(func() {
		l.cancel()
		g := l.gate
		g.mu.Lock()
		if g.holder == l {
			g.holder = nil
			close(g.released)
		}
		g.mu.Unlock()
	})
}
