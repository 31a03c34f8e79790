package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	linkhttp "github.com/fyrsmithlabs/linkrank/internal/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking HTTP API",
	Long: `Serve the HTTP API on server.host:server.port.

Endpoints:
  POST /api/v1/rank               rank a page and return the final ranking
  POST /api/v1/trigger            schedule a debounced ranking (202)
  GET  /api/v1/snapshots/latest   most recent snapshot (?final=true)
  GET  /api/v1/snapshots/stream   Server-Sent Events of every snapshot
  GET  /health
  GET  /metrics

Snapshots are also published to NATS when nats.url is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{publish: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	srv, err := linkhttp.NewServer(a.analyzer, a.broadcaster, a.zl().Named("http"), &linkhttp.Config{
		Host:      a.cfg.Server.Host,
		Port:      a.cfg.Server.Port,
		Heartbeat: a.cfg.Server.Heartbeat.Duration(),
		BodyLimit: a.cfg.Server.BodyLimit,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.zl().Warn("HTTP shutdown incomplete", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
