package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/linkrank/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout.

Tools:
  rank_links       rank the links of a URL, HTML document or snapshot
  latest_ranking   return the most recent ranking snapshot

Logs go to stderr; stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{publish: true, stdoutReserved: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	cfg := mcp.DefaultConfig()
	cfg.Version = version
	cfg.Logger = a.zl().Named("mcp")

	srv, err := mcp.NewServer(cfg, a.analyzer, a.broadcaster)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()
	return srv.Run(ctx)
}
