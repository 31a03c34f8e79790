// Package consumer delivers ranking snapshots to whoever presents them.
//
// The ranking core emits partial snapshots as batches resolve and exactly one
// final snapshot per current request. Delivery is fire-and-forget: a consumer
// that is unavailable loses the snapshot; nothing is retried.
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// Status is the outcome carried by a snapshot.
type Status string

const (
	// StatusOK means the snapshot carries a ranking.
	StatusOK Status = "ok"
	// StatusNoLinks means no candidate survived filtering.
	StatusNoLinks Status = "no_links"
	// StatusError means the page could not be inspected.
	StatusError Status = "error"
)

// Snapshot is one ranked view of a request's candidates.
type Snapshot struct {
	ID         uuid.UUID             `json:"id"`
	RequestID  uint64                `json:"request_id"`
	URL        string                `json:"url"`
	Candidates []candidate.Candidate `json:"candidates"`
	Final      bool                  `json:"final"`
	Status     Status                `json:"status"`
	Error      string                `json:"error,omitempty"`
	Batches    int                   `json:"batches"` // batches merged so far
	EmittedAt  time.Time             `json:"emitted_at"`
}

// NewSnapshot stamps a snapshot with a fresh id and emission time.
func NewSnapshot(requestID uint64, url string, cands []candidate.Candidate, final bool, status Status) Snapshot {
	return Snapshot{
		ID:         uuid.New(),
		RequestID:  requestID,
		URL:        url,
		Candidates: candidate.Clone(cands),
		Final:      final,
		Status:     status,
		EmittedAt:  time.Now().UTC(),
	}
}

// Kind is "final" or "partial".
func (s Snapshot) Kind() string {
	if s.Final {
		return "final"
	}
	return "partial"
}

// Consumer receives snapshots. Deliver must not block for long; the
// orchestrator calls it on the request's goroutine.
type Consumer interface {
	Deliver(ctx context.Context, s Snapshot) error
}

// Func adapts a function to Consumer.
type Func func(ctx context.Context, s Snapshot) error

// Deliver implements Consumer.
func (f Func) Deliver(ctx context.Context, s Snapshot) error {
	return f(ctx, s)
}

// Multi delivers to every consumer and joins their errors.
type Multi []Consumer

// Deliver implements Consumer.
func (m Multi) Deliver(ctx context.Context, s Snapshot) error {
	var errs []error
	for _, c := range m {
		if c == nil {
			continue
		}
		if err := c.Deliver(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
