package rankparse

import (
	"sort"
	"strings"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// State is the lifecycle of one batch conversation.
type State int

const (
	AwaitingFirstToken State = iota
	Parsing
	Resolved
	TimedOut
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingFirstToken:
		return "awaiting_first_token"
	case Parsing:
		return "parsing"
	case Resolved:
		return "resolved"
	case TimedOut:
		return "timed_out"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further fragments are accepted.
func (s State) Terminal() bool {
	return s == Resolved || s == TimedOut || s == Aborted
}

// maxTail bounds a single unterminated line; beyond it only keepTail bytes
// are retained.
const (
	maxTail  = 4096
	keepTail = 64
)

// Resolution is a confirmed rank for one candidate.
type Resolution struct {
	ID    int
	Rank  int
	Score float64
}

// Session is the accumulation state for one batch. It is not safe for
// concurrent use; the orchestrator drives it from a single goroutine.
type Session struct {
	proto Protocol
	batch []candidate.Candidate
	known map[int]struct{}

	state    State
	buf      string
	resolved map[int]int
	order    []Resolution
}

// NewSession starts a session for batch. The batch order is the prior order
// used by Partial for unresolved candidates.
func NewSession(proto Protocol, batch []candidate.Candidate) *Session {
	known := make(map[int]struct{}, len(batch))
	for _, c := range batch {
		known[c.ID] = struct{}{}
	}
	return &Session{
		proto:    proto,
		batch:    candidate.Clone(batch),
		known:    known,
		resolved: make(map[int]int, len(batch)),
	}
}

// Protocol returns the session's protocol.
func (s *Session) Protocol() Protocol { return s.proto }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Buffer returns the unconsumed tail.
func (s *Session) Buffer() string { return s.buf }

// Resolutions returns confirmed ranks in resolution order.
func (s *Session) Resolutions() []Resolution {
	out := make([]Resolution, len(s.order))
	copy(out, s.order)
	return out
}

// Len is the number of resolved candidates.
func (s *Session) Len() int { return len(s.order) }

// Done reports whether every candidate in the batch resolved.
func (s *Session) Done() bool { return len(s.order) == len(s.batch) }

// Feed appends a fragment and returns the resolutions it confirmed.
// Fragments arriving after a terminal state are ignored.
func (s *Session) Feed(fragment string) []Resolution {
	if s.state.Terminal() {
		return nil
	}
	if fragment == "" {
		return nil
	}
	s.state = Parsing
	s.buf += fragment
	return s.scan(false)
}

// Complete flushes the tail and moves to Resolved.
func (s *Session) Complete() []Resolution {
	if s.state.Terminal() {
		return nil
	}
	out := s.scan(true)
	s.buf = ""
	s.state = Resolved
	return out
}

// Abort ends the session in TimedOut or Aborted without consuming the tail.
func (s *Session) Abort(state State) {
	if s.state.Terminal() {
		return
	}
	if state != TimedOut {
		state = Aborted
	}
	s.buf = ""
	s.state = state
}

func (s *Session) scan(final bool) []Resolution {
	var out []Resolution
	for _, m := range s.proto.Scan(s.buf, final) {
		if r, ok := s.resolve(m); ok {
			out = append(out, r)
		}
	}
	s.truncate()
	return out
}

func (s *Session) resolve(m Match) (Resolution, bool) {
	if _, ok := s.known[m.ID]; !ok {
		return Resolution{}, false
	}
	if _, dup := s.resolved[m.ID]; dup {
		return Resolution{}, false
	}
	rank := m.Rank
	if rank == 0 {
		rank = MaxRank - len(s.order)
		if rank < MinRank {
			rank = MinRank
		}
	}
	if rank < MinRank || rank > MaxRank {
		return Resolution{}, false
	}
	r := Resolution{ID: m.ID, Rank: rank, Score: float64(rank) / MaxRank}
	s.resolved[m.ID] = rank
	s.order = append(s.order, r)
	return r, true
}

// truncate keeps only the last, presumed-incomplete line.
func (s *Session) truncate() {
	if i := strings.LastIndexByte(s.buf, '\n'); i >= 0 {
		s.buf = s.buf[i+1:]
	}
	if len(s.buf) > maxTail {
		tail := s.buf[len(s.buf)-keepTail:]
		// Do not start mid-number.
		for len(tail) > 0 && tail[0] >= '0' && tail[0] <= '9' {
			tail = tail[1:]
		}
		s.buf = tail
	}
}

// ranked returns the resolved candidates by rank descending, ties by
// resolution order, with their model scores applied.
func (s *Session) ranked() []candidate.Candidate {
	return s.rankedFirst(len(s.order))
}

// rankedFirst is ranked restricted to the first n resolutions.
func (s *Session) rankedFirst(n int) []candidate.Candidate {
	byID := make(map[int]candidate.Candidate, len(s.batch))
	for _, c := range s.batch {
		byID[c.ID] = c
	}
	res := make([]Resolution, n)
	copy(res, s.order[:n])
	sort.SliceStable(res, func(i, j int) bool { return res[i].Rank > res[j].Rank })

	out := make([]candidate.Candidate, 0, len(s.batch))
	for _, r := range res {
		c := byID[r.ID]
		c.Score = r.Score
		c.Source = candidate.SourceModel
		out = append(out, c)
	}
	return out
}

// Partial is the current best view: resolved candidates first, then the
// unresolved ones in their prior order.
func (s *Session) Partial() []candidate.Candidate {
	return s.PartialAt(len(s.order))
}

// PartialAt is the view as it stood after the first n resolutions. n is
// clamped to [0, Len()].
func (s *Session) PartialAt(n int) []candidate.Candidate {
	if n < 0 {
		n = 0
	}
	if n > len(s.order) {
		n = len(s.order)
	}
	out := s.rankedFirst(n)
	seen := make(map[int]struct{}, n)
	for _, r := range s.order[:n] {
		seen[r.ID] = struct{}{}
	}
	for _, c := range s.batch {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// Finalize returns the final order: resolved candidates by rank, then the
// unresolved ones in fallback order. With no resolutions the result is the
// fallback order itself. fallback must be a permutation of the batch.
func (s *Session) Finalize(fallback []candidate.Candidate) []candidate.Candidate {
	out := s.ranked()
	for _, c := range fallback {
		if _, ok := s.resolved[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}
