// Package rankparse turns the streamed text of a ranking conversation into
// rank assignments as soon as they can be confirmed.
//
// Two wire shapes are supported behind the Protocol interface: per-link rank
// pairs ("3:9") and a single ordered id list ("RANKING: 3,0,1"). A Session
// holds the accumulation state for one batch and enforces the invariants
// shared by both: an id resolves at most once, ranks stay in [1,10], and ids
// outside the batch are ignored.
package rankparse

import "fmt"

// Rank bounds.
const (
	MinRank = 1
	MaxRank = 10
)

// Match is one (id, rank) signal found in the buffer. A zero Rank means the
// protocol is ordinal: the session derives the rank from arrival order.
type Match struct {
	ID   int
	Rank int
}

// Protocol is a ranking wire format.
type Protocol interface {
	// Name identifies the protocol in logs and metrics.
	Name() string

	// FormatInstruction is the output-format paragraph appended to prompts.
	FormatInstruction(ids []int) string

	// Scan returns the matches in buf, in the order they should be applied.
	// Unless final is set, a match touching the end of buf is not returned
	// because further fragments could still extend it.
	Scan(buf string, final bool) []Match
}

// ProtocolByName returns the named protocol.
func ProtocolByName(name string) (Protocol, error) {
	switch name {
	case PairsName:
		return Pairs{}, nil
	case ListName:
		return List{}, nil
	default:
		return nil, fmt.Errorf("unknown ranking protocol %q", name)
	}
}
