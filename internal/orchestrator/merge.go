package orchestrator

import (
	"sort"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// partition splits in into consecutive batches of at most size.
func partition(in []candidate.Candidate, size int) [][]candidate.Candidate {
	if size < 1 {
		size = 1
	}
	var out [][]candidate.Candidate
	for start := 0; start < len(in); start += size {
		end := start + size
		if end > len(in) {
			end = len(in)
		}
		out = append(out, in[start:end:end])
	}
	return out
}

// ranking is the running overall order of one request.
//
// Model-ranked candidates lead, by score descending with earlier batches
// winning ties. Heuristic fallbacks follow in the order their batches
// produced them, then the unresolved part of the batch in flight, then the
// batches not yet run.
type ranking struct {
	batches [][]candidate.Candidate
	done    []candidate.Candidate
	next    int
}

func newRanking(batches [][]candidate.Candidate) *ranking {
	return &ranking{batches: batches}
}

// commit records the finalized order of the next batch.
func (r *ranking) commit(final []candidate.Candidate) {
	r.done = append(r.done, candidate.Clone(final)...)
	r.next++
}

// committed is the number of batches merged so far.
func (r *ranking) committed() int { return r.next }

// modelRanked reports whether any committed candidate carries a model score.
func (r *ranking) modelRanked() bool {
	for _, c := range r.done {
		if c.Source == candidate.SourceModel {
			return true
		}
	}
	return false
}

// view returns the merged order with current as the in-flight batch's
// partial order. current may be nil between batches.
func (r *ranking) view(current []candidate.Candidate) []candidate.Candidate {
	var model, rest []candidate.Candidate
	for _, group := range [][]candidate.Candidate{r.done, current} {
		for _, c := range group {
			if c.Source == candidate.SourceModel {
				model = append(model, c)
			}
		}
	}
	sort.SliceStable(model, func(i, j int) bool { return model[i].Score > model[j].Score })

	for _, group := range [][]candidate.Candidate{r.done, current} {
		for _, c := range group {
			if c.Source != candidate.SourceModel {
				rest = append(rest, c)
			}
		}
	}

	pendingFrom := r.next
	if current != nil {
		pendingFrom++
	}
	out := make([]candidate.Candidate, 0, len(model)+len(rest))
	out = append(out, model...)
	out = append(out, rest...)
	for i := pendingFrom; i < len(r.batches); i++ {
		out = append(out, r.batches[i]...)
	}
	return candidate.Clone(out)
}
