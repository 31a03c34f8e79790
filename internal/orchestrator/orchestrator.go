package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/engine"
	"github.com/fyrsmithlabs/linkrank/internal/filter"
	"github.com/fyrsmithlabs/linkrank/internal/lifecycle"
	"github.com/fyrsmithlabs/linkrank/internal/logging"
	"github.com/fyrsmithlabs/linkrank/internal/prompt"
	"github.com/fyrsmithlabs/linkrank/internal/scorer"
)

const instrumentationName = "github.com/fyrsmithlabs/linkrank/internal/orchestrator"

// StatusStale labels analyses dropped as superseded.
const StatusStale = "stale"

// Deps are the collaborators of an Orchestrator. Engine and Consumer are
// required; the rest default.
type Deps struct {
	Filter   *filter.Filter
	Scorer   *scorer.Scorer
	Prompt   prompt.Builder
	Engine   engine.Engine
	Gate     *lifecycle.Gate
	Consumer consumer.Consumer
	Logger   *zap.Logger
}

// Orchestrator runs ranking cycles. It is safe for concurrent use; the Gate
// keeps engine conversations exclusive.
type Orchestrator struct {
	cfg      Config
	filter   *filter.Filter
	scorer   *scorer.Scorer
	prompts  prompt.Builder
	engine   engine.Engine
	gate     *lifecycle.Gate
	consumer consumer.Consumer
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *Metrics
}

// Result summarises one ranking cycle.
type Result struct {
	RequestID  uint64
	URL        string
	Candidates []candidate.Candidate
	Status     consumer.Status
	Error      string
	Batches    int
	Fallbacks  int // batches without any model rank
	Stale      bool
}

// New creates an Orchestrator. Zero Config fields take their defaults.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if deps.Consumer == nil {
		return nil, errors.New("consumer is required")
	}
	if deps.Filter == nil {
		f, err := filter.New(filter.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("creating default filter: %w", err)
		}
		deps.Filter = f
	}
	if deps.Scorer == nil {
		deps.Scorer = scorer.Default()
	}
	if deps.Gate == nil {
		deps.Gate = lifecycle.NewGate()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Orchestrator{
		cfg:      cfg,
		filter:   deps.Filter,
		scorer:   deps.Scorer,
		prompts:  deps.Prompt,
		engine:   deps.Engine,
		gate:     deps.Gate,
		consumer: deps.Consumer,
		logger:   deps.Logger,
		tracer:   otel.Tracer(instrumentationName),
		metrics:  NewMetrics(),
	}, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Rank runs one ranking cycle for tok. It returns an error only when ctx
// ends; a superseded request returns a Result with Stale set.
func (o *Orchestrator) Rank(ctx context.Context, tok lifecycle.Token, url string, cands []candidate.Candidate) (Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.rank")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("analysis.request_id", int64(tok.ID())),
		attribute.String("analysis.url", url),
		attribute.Int("candidates.received", len(cands)),
	)

	ctx = logging.WithAnalysis(ctx, tok.ID(), url)
	logger := o.logger.With(logging.ContextFields(ctx)...)
	res := Result{RequestID: tok.ID(), URL: url}

	if !tok.Current() {
		return o.stale(span, logger, res, CheckpointStart), nil
	}

	kept, rejected := o.filter.Partition(cands)
	for rule, n := range rejected {
		o.metrics.FilterRejectsTotal.WithLabelValues(rule).Add(float64(n))
	}
	span.SetAttributes(attribute.Int("candidates.kept", len(kept)))
	logger.Debug("Filtered candidates",
		zap.Int("received", len(cands)),
		zap.Int("kept", len(kept)),
	)

	if len(kept) == 0 {
		res.Status = consumer.StatusNoLinks
		if !o.emit(ctx, tok, logger, o.snapshot(res, nil, true)) {
			return o.stale(span, logger, res, CheckpointFinal), nil
		}
		o.metrics.AnalysesTotal.WithLabelValues(string(res.Status)).Inc()
		return res, nil
	}

	o.scorer.Annotate(kept)
	capped := o.scorer.Cap(kept, o.cfg.MaxCandidates)
	batches := partition(capped, o.cfg.BatchSize)
	run := newRanking(batches)
	span.SetAttributes(attribute.Int("batches", len(batches)))

	for i, batch := range batches {
		br, err := o.runBatch(ctx, request{tok: tok, url: url, logger: logger}, run, i, batch)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return res, err
		}
		if br.outcome == OutcomeStale {
			return o.stale(span, logger, res, br.checkpoint), nil
		}

		run.commit(br.order)
		res.Batches = run.committed()
		if br.resolved == 0 {
			res.Fallbacks++
		}
		if !o.emit(ctx, tok, logger, o.snapshot(res, run.view(nil), false)) {
			return o.stale(span, logger, res, CheckpointPartial), nil
		}
	}

	res.Candidates = o.finalOrder(kept, capped, run)
	res.Status = consumer.StatusOK
	if !o.emit(ctx, tok, logger, o.snapshot(res, res.Candidates, true)) {
		res.Candidates = nil
		return o.stale(span, logger, res, CheckpointFinal), nil
	}

	o.metrics.AnalysesTotal.WithLabelValues(string(res.Status)).Inc()
	span.SetAttributes(attribute.Int("fallbacks", res.Fallbacks))
	logger.Info("Ranking complete",
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("batches", res.Batches),
		zap.Int("fallbacks", res.Fallbacks),
	)
	return res, nil
}

// Fail emits the final error snapshot for a request whose page could not be
// inspected.
func (o *Orchestrator) Fail(ctx context.Context, tok lifecycle.Token, url string, cause error) Result {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	ctx, span := o.tracer.Start(ctx, "orchestrator.fail")
	defer span.End()
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())

	ctx = logging.WithAnalysis(ctx, tok.ID(), url)
	logger := o.logger.With(logging.ContextFields(ctx)...)
	res := Result{
		RequestID: tok.ID(),
		URL:       url,
		Status:    consumer.StatusError,
		Error:     fmt.Sprintf("could not inspect page: %v", cause),
	}

	snap := o.snapshot(res, nil, true)
	snap.Error = res.Error
	if !o.emit(ctx, tok, logger, snap) {
		return o.stale(span, logger, res, CheckpointFinal)
	}
	o.metrics.AnalysesTotal.WithLabelValues(string(res.Status)).Inc()
	logger.Warn("Page inspection failed", zap.Error(cause))
	return res
}

// finalOrder is the heuristic order of every filtered candidate when no
// batch produced a model rank; otherwise the merged order followed by the
// candidates the cap left out.
func (o *Orchestrator) finalOrder(kept, capped []candidate.Candidate, run *ranking) []candidate.Candidate {
	if !run.modelRanked() {
		return o.fallback(kept)
	}
	out := run.view(nil)
	if len(capped) == len(kept) {
		return out
	}
	inCap := candidate.Index(capped)
	var overflow []candidate.Candidate
	for _, c := range kept {
		if _, ok := inCap[c.ID]; !ok {
			overflow = append(overflow, c)
		}
	}
	return append(out, o.fallback(overflow)...)
}

// fallback returns in ordered by the heuristic with normalized legacy
// scores.
func (o *Orchestrator) fallback(in []candidate.Candidate) []candidate.Candidate {
	out := o.scorer.FallbackOrder(in)
	for i := range out {
		out[i].Score = o.scorer.Normalized(out[i])
		out[i].Source = candidate.SourceHeuristic
	}
	return out
}

func (o *Orchestrator) snapshot(res Result, cands []candidate.Candidate, final bool) consumer.Snapshot {
	s := consumer.NewSnapshot(res.RequestID, res.URL, cands, final, res.Status)
	if !final {
		s.Status = consumer.StatusOK
	}
	s.Batches = res.Batches
	return s
}

// emit delivers s while tok is current. It reports false when tok was
// superseded. Consumer failures are logged and otherwise ignored.
func (o *Orchestrator) emit(ctx context.Context, tok lifecycle.Token, logger *zap.Logger, s consumer.Snapshot) bool {
	var err error
	if !tok.Deliver(func() { err = o.consumer.Deliver(ctx, s) }) {
		return false
	}
	o.metrics.SnapshotsTotal.WithLabelValues(s.Kind()).Inc()
	if err != nil {
		logger.Warn("Snapshot delivery failed",
			zap.String("kind", s.Kind()),
			zap.Error(err),
		)
	}
	return true
}

func (o *Orchestrator) stale(span trace.Span, logger *zap.Logger, res Result, checkpoint string) Result {
	res.Stale = true
	o.metrics.StaleDropsTotal.WithLabelValues(checkpoint).Inc()
	o.metrics.AnalysesTotal.WithLabelValues(StatusStale).Inc()
	span.SetAttributes(attribute.Bool("stale", true), attribute.String("stale.checkpoint", checkpoint))
	logger.Debug("Dropping superseded request", zap.String("checkpoint", checkpoint))
	return res
}
