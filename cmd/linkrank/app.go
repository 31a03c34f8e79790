package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/analysis"
	"github.com/fyrsmithlabs/linkrank/internal/config"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/engine"
	"github.com/fyrsmithlabs/linkrank/internal/filter"
	"github.com/fyrsmithlabs/linkrank/internal/lifecycle"
	"github.com/fyrsmithlabs/linkrank/internal/logging"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
	"github.com/fyrsmithlabs/linkrank/internal/scorer"
	"github.com/fyrsmithlabs/linkrank/internal/telemetry"
)

// app holds the wired ranking pipeline shared by all commands.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	telemetry   *telemetry.Telemetry
	engine      *engine.LangChain
	broadcaster *consumer.Broadcaster
	analyzer    *analysis.Analyzer
	natsConn    *nats.Conn
}

// appOptions select the optional parts of the pipeline.
type appOptions struct {
	// sinks receive every snapshot alongside the broadcaster.
	sinks []consumer.Consumer
	// publish enables NATS publication when nats.url is configured.
	publish bool
	// stdoutReserved forces console logs to stderr because stdout carries
	// command output or a protocol.
	stdoutReserved bool
}

// loadSettings reads the core, logging and telemetry configuration.
func loadSettings() (*config.Config, *logging.Config, *telemetry.Config, error) {
	loader, err := config.NewLoader(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := loader.Config()
	if err != nil {
		return nil, nil, nil, err
	}

	logCfg := logging.NewDefaultConfig()
	if err := loader.Unmarshal("logging", logCfg); err != nil {
		return nil, nil, nil, err
	}
	if logLevel != "" {
		lvl, err := logging.ParseLevel(logLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid --log-level: %w", err)
		}
		logCfg.Level = lvl
	}

	telCfg := telemetry.NewDefaultConfig()
	if err := loader.Unmarshal("telemetry", telCfg); err != nil {
		return nil, nil, nil, err
	}
	if version != "dev" {
		telCfg.ServiceVersion = version
	}
	return cfg, logCfg, telCfg, nil
}

// newApp wires configuration, observability and the ranking pipeline.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, logCfg, telCfg, err := loadSettings()
	if err != nil {
		return nil, err
	}
	if opts.stdoutReserved {
		logCfg.Output.Stream = "stderr"
	}

	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, telemetry: tel}
	zl := logger.Underlying()

	if h := tel.Health(); h.Degraded {
		zl.Warn("Telemetry degraded, continuing without export",
			zap.String("endpoint", telCfg.Endpoint),
			zap.Strings("reasons", h.Reasons))
	}

	a.engine, err = engine.NewLangChain(cfg.LangChain())
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	a.engine.SetLogger(zl.Named("engine"))
	logger.Debug(ctx, "Engine configured",
		zap.String("provider", cfg.Engine.Provider),
		zap.String("model", cfg.Engine.Model),
		logging.Secret("credential", cfg.Engine.APIKey))

	flt, err := filter.New(cfg.Filter)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create filter: %w", err)
	}
	scr, err := scorer.New(cfg.Scoring)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	var gateOpts []lifecycle.GateOption
	if cfg.Ranking.Preempt {
		gateOpts = append(gateOpts, lifecycle.WithPreemption(a.engine.Cancel))
	}

	a.broadcaster = consumer.NewBroadcaster()
	sinks := consumer.Multi{a.broadcaster, consumer.NewLog(zl.Named("snapshots"))}
	if opts.publish && cfg.NATS.Enabled() {
		nc, err := connectNATS(cfg.NATS)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		a.natsConn = nc
		sinks = append(sinks, consumer.NewNATS(nc, cfg.NATS.SubjectPrefix))
		zl.Info("Publishing snapshots to NATS", zap.String("url", cfg.NATS.URL))
	}
	sinks = append(sinks, opts.sinks...)

	orch, err := orchestrator.New(orchestratorConfig(cfg), orchestrator.Deps{
		Filter:   flt,
		Scorer:   scr,
		Engine:   a.engine,
		Gate:     lifecycle.NewGate(gateOpts...),
		Consumer: sinks,
		Logger:   zl.Named("orchestrator"),
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	a.analyzer = analysis.New(lifecycle.NewManager(), newRouter(cfg), orch,
		analysis.WithLogger(zl.Named("analysis")),
		analysis.WithTracerSource(tel),
		analysis.WithDebounce(cfg.Ranking.Debounce.Duration()),
		analysis.WithInspectTimeout(cfg.Ranking.InspectTimeout.Duration()),
	)
	return a, nil
}

// orchestratorConfig maps the ranking section onto orchestrator bounds.
// Zero values are left for the orchestrator to default.
func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	r := cfg.Ranking
	return orchestrator.Config{
		BatchSize:     r.BatchSize,
		MaxCandidates: r.MaxCandidates,
		BatchTimeout:  r.BatchTimeout.Duration(),
		HardTimeout:   r.HardTimeout.Duration(),
		SingleShotMax: r.SingleShotMax,
		Protocol:      r.Protocol,
	}
}

// newRouter builds the page collaborator from the page and scoring sections.
func newRouter(cfg *config.Config) *page.Router {
	r := page.NewRouter(page.NewFetcher(cfg.Fetcher()), cfg.Page.MaxCandidates)
	r.HTML = page.NewHTMLExtractor(
		page.WithMaxCandidates(cfg.Page.MaxCandidates),
		page.WithThresholds(cfg.Scoring.Thresholds),
	)
	return r
}

func connectNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return nc, nil
}

// Close stops the pipeline and flushes telemetry and logs.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.analyzer != nil {
		errs = append(errs, a.analyzer.Close())
	}
	if a.natsConn != nil {
		if err := a.natsConn.Drain(); err != nil {
			a.natsConn.Close()
		}
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	if a.logger != nil {
		_ = a.logger.Sync() // Best-effort sync
	}
	return errors.Join(errs...)
}

// zl returns the underlying structured logger.
func (a *app) zl() *zap.Logger {
	return a.logger.Underlying()
}
