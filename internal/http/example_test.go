package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/analysis"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/engine/enginetest"
	httpserver "github.com/fyrsmithlabs/linkrank/internal/http"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	logger := zap.NewNop()

	// Snapshots are fanned out to SSE clients and kept for /snapshots/latest
	snapshots := consumer.NewBroadcaster()

	orch, err := orchestrator.New(orchestrator.DefaultConfig(), orchestrator.Deps{
		Engine:   enginetest.New(),
		Consumer: snapshots,
		Logger:   logger,
	})
	if err != nil {
		panic(err)
	}
	analyzer := analysis.New(nil, page.NewRouter(page.NewFetcher(page.FetcherConfig{}), page.DefaultMaxCandidates), orch)
	defer analyzer.Close()

	server, err := httpserver.NewServer(analyzer, snapshots, logger, &httpserver.Config{
		Host: "localhost",
		Port: 9090,
	})
	if err != nil {
		panic(err)
	}

	// Start server in background
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
