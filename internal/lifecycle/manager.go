// Package lifecycle tracks which analysis request is current and serialises
// access to the generation engine.
//
// Every externally triggered analysis calls Manager.Issue and threads the
// returned Token through all of its asynchronous continuations. A request
// whose token is no longer current stops silently: staleness is flow control,
// not an error.
package lifecycle

import "sync"

// Manager issues strictly increasing request ids. The zero value is ready to
// use; each Manager is an independent id space.
type Manager struct {
	mu     sync.Mutex
	latest uint64
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Issue supersedes every previously issued token.
func (m *Manager) Issue() Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest++
	return Token{id: m.latest, mgr: m}
}

// Latest returns the most recently issued id, or 0.
func (m *Manager) Latest() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// IsCurrent reports whether id is the most recently issued id.
func (m *Manager) IsCurrent(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return id != 0 && id == m.latest
}

// Deliver runs fn only if tok is current, holding the issue lock for the
// duration so no newer token can be issued while fn runs. It reports whether
// fn ran. fn must not call Issue.
func (m *Manager) Deliver(tok Token, fn func()) bool {
	if tok.mgr != m {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tok.id == 0 || tok.id != m.latest {
		return false
	}
	fn()
	return true
}

// Token identifies one analysis request.
type Token struct {
	id  uint64
	mgr *Manager
}

// ID returns the request id. The zero Token has id 0.
func (t Token) ID() uint64 { return t.id }

// Current reports whether no newer token has been issued.
func (t Token) Current() bool {
	if t.mgr == nil {
		return false
	}
	return t.mgr.IsCurrent(t.id)
}

// Deliver is shorthand for the owning Manager's Deliver.
func (t Token) Deliver(fn func()) bool {
	if t.mgr == nil {
		return false
	}
	return t.mgr.Deliver(t, fn)
}
