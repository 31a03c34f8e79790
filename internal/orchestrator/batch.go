package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/lifecycle"
	"github.com/fyrsmithlabs/linkrank/internal/logging"
	"github.com/fyrsmithlabs/linkrank/internal/rankparse"
)

// CheckpointConversation marks a request found stale while its engine
// conversation was running.
const CheckpointConversation = "conversation"

// request is the identity one cycle threads through its batches.
type request struct {
	tok    lifecycle.Token
	url    string
	logger *zap.Logger
}

type batchResult struct {
	order      []candidate.Candidate
	outcome    string
	checkpoint string
	resolved   int
}

type fragment struct {
	text string
	done bool
}

// runBatch holds the gate for one engine conversation and returns the
// batch's final order. Only a cancelled ctx produces an error.
func (o *Orchestrator) runBatch(ctx context.Context, req request, run *ranking, index int, batch []candidate.Candidate) (batchResult, error) {
	tok := req.tok
	proto := o.cfg.protocolFor(len(batch))

	ctx, span := o.tracer.Start(ctx, "orchestrator.batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.index", index),
		attribute.Int("batch.size", len(batch)),
		attribute.String("batch.protocol", proto.Name()),
	)
	ctx = logging.WithBatch(ctx, index)
	req.logger = req.logger.With(zap.Int("analysis.batch", index), zap.String("protocol", proto.Name()))

	if !tok.Current() {
		return batchResult{outcome: OutcomeStale, checkpoint: CheckpointBatch}, nil
	}

	text, err := o.prompts.Build(batch, proto)
	if err != nil {
		return batchResult{}, fmt.Errorf("building prompt: %w", err)
	}

	lease, err := o.gate.Acquire(ctx, tok)
	if errors.Is(err, lifecycle.ErrStale) {
		return batchResult{outcome: OutcomeStale, checkpoint: CheckpointGate}, nil
	}
	if err != nil {
		return batchResult{}, fmt.Errorf("waiting for engine: %w", err)
	}
	defer lease.Release()

	start := time.Now()
	session := rankparse.NewSession(proto, batch)
	br, err := o.converse(ctx, req, lease, session, run, text)
	if err != nil {
		span.RecordError(err)
		return batchResult{}, err
	}
	br.resolved = session.Len()
	if br.outcome != OutcomeStale {
		br.order = session.Finalize(o.fallback(batch))
	}

	elapsed := time.Since(start)
	o.metrics.BatchesTotal.WithLabelValues(br.outcome).Inc()
	o.metrics.BatchDuration.WithLabelValues(proto.Name()).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("batch.outcome", br.outcome),
		attribute.Int("batch.resolved", br.resolved),
		attribute.String("batch.state", session.State().String()),
	)
	req.logger.Debug("Batch finished",
		zap.String("outcome", br.outcome),
		zap.Int("resolved", br.resolved),
		zap.Int("size", len(batch)),
		zap.Duration("duration", elapsed),
	)
	return br, nil
}

// converse streams one conversation into session. Fragments are handed over
// on an unbuffered channel so every fragment is consumed before the engine's
// return value is observed.
func (o *Orchestrator) converse(ctx context.Context, req request, lease *lifecycle.Lease, session *rankparse.Session, run *ranking, prompt string) (batchResult, error) {
	tok, logger := req.tok, req.logger
	fragments := make(chan fragment)
	stop := make(chan struct{})
	errc := make(chan error, 1)

	go func() {
		errc <- o.engine.StreamResponse(lease.Context(), prompt, func(text string, done bool) {
			select {
			case fragments <- fragment{text: text, done: done}:
			case <-stop:
			}
		})
	}()

	soft := time.NewTimer(o.cfg.BatchTimeout)
	defer soft.Stop()
	hard := time.NewTimer(o.cfg.HardTimeout)
	defer hard.Stop()

	var (
		br       batchResult
		finished bool // engine returned
		sawDone  bool // engine signalled completion
		ctxErr   error
	)

	// apply counts new resolutions and emits one partial per resolution, in
	// resolution order. got must be the newest resolutions of session. It
	// reports false when the request went stale.
	apply := func(got []rankparse.Resolution) bool {
		if len(got) == 0 {
			return true
		}
		o.metrics.ResolutionsTotal.WithLabelValues(session.Protocol().Name()).Add(float64(len(got)))
		res := Result{RequestID: tok.ID(), URL: req.url, Batches: run.committed()}
		base := session.Len() - len(got)
		for i := range got {
			view := run.view(session.PartialAt(base + i + 1))
			if !o.emit(ctx, tok, logger, o.snapshot(res, view, false)) {
				return false
			}
		}
		return true
	}

	for br.outcome == "" && ctxErr == nil {
		select {
		case f := <-fragments:
			if !tok.Current() {
				br = batchResult{outcome: OutcomeStale, checkpoint: CheckpointConversation}
				continue
			}
			got := session.Feed(f.text)
			if f.done {
				sawDone = true
				got = append(got, session.Complete()...)
			}
			switch {
			case !apply(got):
				br = batchResult{outcome: OutcomeStale, checkpoint: CheckpointPartial}
			case session.Done():
				br.outcome = OutcomeResolved
			case f.done:
				br.outcome = completion(session)
			}

		case err := <-errc:
			finished = true
			if err == nil {
				if !apply(session.Complete()) {
					br = batchResult{outcome: OutcomeStale, checkpoint: CheckpointPartial}
					continue
				}
				br.outcome = completion(session)
				continue
			}
			session.Abort(rankparse.Aborted)
			if !tok.Current() {
				br = batchResult{outcome: OutcomeStale, checkpoint: CheckpointConversation}
				continue
			}
			if ctx.Err() != nil {
				ctxErr = ctx.Err()
				continue
			}
			logger.Warn("Generation failed, using heuristic order",
				zap.Int("resolved", session.Len()),
				zap.Error(err),
			)
			br.outcome = OutcomeEngineError

		case <-soft.C:
			if session.Len() == 0 {
				session.Abort(rankparse.TimedOut)
				br.outcome = OutcomeTimeout
			}

		case <-hard.C:
			session.Abort(rankparse.TimedOut)
			if session.Len() == 0 {
				br.outcome = OutcomeTimeout
			} else {
				br.outcome = OutcomeHardTimeout
			}

		case <-lease.Context().Done():
			if ctx.Err() != nil {
				ctxErr = ctx.Err()
				continue
			}
			// Preempted by a newer request.
			session.Abort(rankparse.Aborted)
			br = batchResult{outcome: OutcomeStale, checkpoint: CheckpointConversation}
		}
	}

	close(stop)
	if !finished {
		if !sawDone {
			lease.Abort()
			o.engine.Cancel()
		}
		o.awaitEngine(errc, logger)
	}

	if ctxErr != nil {
		return batchResult{}, ctxErr
	}
	return br, nil
}

// cancelGrace is how long a cancelled conversation may take to return
// before a warning is logged.
var cancelGrace = 2 * time.Second

// awaitEngine waits for the conversation goroutine to return. The gate stays
// held meanwhile so the engine is never driven by two conversations.
func (o *Orchestrator) awaitEngine(errc <-chan error, logger *zap.Logger) {
	grace := time.NewTimer(cancelGrace)
	defer grace.Stop()
	select {
	case <-errc:
		return
	case <-grace.C:
	}
	start := time.Now()
	logger.Warn("Engine still running after cancel, waiting", zap.Duration("grace", cancelGrace))
	<-errc
	logger.Warn("Engine stopped after cancel", zap.Duration("overrun", time.Since(start)))
}

// completion classifies a stream that ended normally.
func completion(session *rankparse.Session) string {
	switch {
	case session.Done():
		return OutcomeResolved
	case session.Len() > 0:
		return OutcomeCompleted
	default:
		return OutcomeEmpty
	}
}
