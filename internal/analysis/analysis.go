// Package analysis starts ranking cycles for pages.
//
// Each analysis issues a fresh lifecycle token, asks the page collaborator
// for candidates and hands them to the orchestrator. Triggers from file
// watchers or HTTP calls are debounced so a burst of page changes runs one
// analysis.
package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/lifecycle"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

const instrumentationName = "github.com/fyrsmithlabs/linkrank/internal/analysis"

// DefaultDebounce is the quiet period before a triggered analysis runs.
const DefaultDebounce = 300 * time.Millisecond

// ErrClosed is returned after Close.
var ErrClosed = errors.New("analyzer closed")

// Ranker runs one ranking cycle. *orchestrator.Orchestrator implements it.
type Ranker interface {
	Rank(ctx context.Context, tok lifecycle.Token, url string, cands []candidate.Candidate) (orchestrator.Result, error)
	Fail(ctx context.Context, tok lifecycle.Token, url string, cause error) orchestrator.Result
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// TracerSource hands out tracers. *telemetry.Telemetry implements it.
type TracerSource interface {
	Tracer(name string, opts ...trace.TracerOption) trace.Tracer
}

// WithTracerSource records spans through src instead of the global provider.
func WithTracerSource(src TracerSource) Option {
	return func(a *Analyzer) {
		if src != nil {
			a.tracer = src.Tracer(instrumentationName)
		}
	}
}

// WithDebounce sets the trigger quiet period.
func WithDebounce(window time.Duration) Option {
	return func(a *Analyzer) { a.window = window }
}

// WithInspectTimeout bounds how long the page collaborator may take.
func WithInspectTimeout(d time.Duration) Option {
	return func(a *Analyzer) { a.inspectTimeout = d }
}

// Analyzer owns the request lifecycle for one presentation surface.
type Analyzer struct {
	manager        *lifecycle.Manager
	pages          page.Collaborator
	ranker         Ranker
	logger         *zap.Logger
	tracer         trace.Tracer
	window         time.Duration
	inspectTimeout time.Duration
	debouncer      *lifecycle.Debouncer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an Analyzer. A nil manager gets a private one.
func New(manager *lifecycle.Manager, pages page.Collaborator, ranker Ranker, opts ...Option) *Analyzer {
	if manager == nil {
		manager = lifecycle.NewManager()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Analyzer{
		manager: manager,
		pages:   pages,
		ranker:  ranker,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(instrumentationName),
		window:  DefaultDebounce,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.debouncer = lifecycle.NewDebouncer(a.window)
	return a
}

// Manager returns the request manager.
func (a *Analyzer) Manager() *lifecycle.Manager {
	return a.manager
}

// Analyze supersedes any running analysis and ranks h synchronously.
func (a *Analyzer) Analyze(ctx context.Context, h page.Handle) (orchestrator.Result, error) {
	if a.isClosed() {
		return orchestrator.Result{}, ErrClosed
	}
	return a.run(ctx, a.manager.Issue(), h)
}

// Trigger supersedes any running analysis immediately and schedules h once
// the debounce window passes quietly. It returns the request id.
func (a *Analyzer) Trigger(h page.Handle) uint64 {
	tok := a.manager.Issue()
	a.debouncer.Trigger(func() {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		a.wg.Add(1)
		a.mu.Unlock()
		defer a.wg.Done()

		if _, err := a.run(a.ctx, tok, h); err != nil {
			a.logger.Debug("Triggered analysis ended", zap.Uint64("request_id", tok.ID()), zap.Error(err))
		}
	})
	a.logger.Debug("Analysis triggered", zap.Uint64("request_id", tok.ID()), zap.String("url", h.URL))
	return tok.ID()
}

// Pending reports whether a triggered analysis is waiting to run.
func (a *Analyzer) Pending() bool {
	return a.debouncer.Pending()
}

// Close drops pending triggers, cancels running analyses and waits for them.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.debouncer.Stop()
	a.cancel()
	a.wg.Wait()
	return nil
}

func (a *Analyzer) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Analyzer) run(ctx context.Context, tok lifecycle.Token, h page.Handle) (orchestrator.Result, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.run")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("analysis.request_id", int64(tok.ID())),
		attribute.String("analysis.url", h.URL),
	)

	inspectCtx := ctx
	if a.inspectTimeout > 0 {
		var cancel context.CancelFunc
		inspectCtx, cancel = context.WithTimeout(ctx, a.inspectTimeout)
		defer cancel()
	}

	cands, err := a.pages.Candidates(inspectCtx, h)
	if err != nil {
		if ctx.Err() != nil {
			return orchestrator.Result{}, ctx.Err()
		}
		return a.ranker.Fail(ctx, tok, h.URL, err), nil
	}
	span.SetAttributes(attribute.Int("candidates", len(cands)))
	return a.ranker.Rank(ctx, tok, h.URL, cands)
}
