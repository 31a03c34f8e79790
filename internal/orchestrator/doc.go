// Package orchestrator drives one ranking cycle from candidates to a final
// snapshot.
//
// # Overview
//
// A cycle filters the candidates, annotates them with the geometry score,
// caps and partitions them into batches, and runs one engine conversation per
// batch. Rank signals are parsed as they stream in and every confirmed
// resolution produces a merged partial snapshot. When all batches are done a
// single final snapshot is emitted.
//
//	Filter → Annotate → Cap → Batch → (Gate → Prompt → Stream → Parse)* → Final
//
// # Fallback
//
// A batch that yields no resolution before its soft timeout, or whose
// conversation fails, falls back to the heuristic order. A batch that keeps
// producing resolutions is allowed to run until its hard timeout and is then
// finalized with what it resolved. When no batch produced a model rank at all
// the final ranking is exactly the heuristic order of the filtered
// candidates.
//
// # Staleness
//
// Every request carries a lifecycle.Token. The token is checked before each
// conversation, and every snapshot is delivered through Token.Deliver, so a
// superseded request never emits after its successor was issued. Stale
// requests return a Result with Stale set and a nil error.
//
// # Usage
//
//	orch, err := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
//	    Filter:   f,
//	    Scorer:   s,
//	    Engine:   eng,
//	    Gate:     lifecycle.NewGate(),
//	    Consumer: consumer.NewLog(logger),
//	    Logger:   logger,
//	})
//	tok := manager.Issue()
//	res, err := orch.Rank(ctx, tok, pageURL, cands)
package orchestrator
