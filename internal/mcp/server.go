package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

// Analyzer runs a page analysis to completion. *analysis.Analyzer
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, h page.Handle) (orchestrator.Result, error)
}

// Snapshots exposes the most recent ranking output. *consumer.Broadcaster
// implements it.
type Snapshots interface {
	Latest() (consumer.Snapshot, bool)
	LatestFinal() (consumer.Snapshot, bool)
}

// Server exposes link ranking as MCP tools.
type Server struct {
	mcp       *mcp.Server
	analyzer  Analyzer
	snapshots Snapshots
	metrics   *toolMetrics
	logger    *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "linkrank")
	Name string

	// Version is the server version (default: "1.0.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "linkrank",
		Version: "1.0.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates a new MCP server. snapshots is optional; without it the
// latest_ranking tool is not registered.
func NewServer(cfg *Config, analyzer Analyzer, snapshots Snapshots) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer is required")
	}
	if cfg.Name == "" {
		cfg.Name = "linkrank"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	metrics, err := newToolMetrics(otel.Meter(instrumentationName))
	if err != nil {
		cfg.Logger.Warn("Some MCP metrics are unavailable", zap.Error(err))
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		analyzer:  analyzer,
		snapshots: snapshots,
		metrics:   metrics,
		logger:    cfg.Logger,
	}
	s.registerTools()

	return s, nil
}

// ===== rank_links =====

type rankLinksInput struct {
	URL      string `json:"url,omitempty" jsonschema:"Page URL. Fetched by the server when html and snapshot are empty"`
	HTML     string `json:"html,omitempty" jsonschema:"Raw page HTML to extract links from"`
	Snapshot string `json:"snapshot,omitempty" jsonschema:"Captured candidate snapshot as JSON"`
}

type rankLinksOutput struct {
	RequestID  uint64                `json:"request_id"`
	URL        string                `json:"url"`
	Status     string                `json:"status"`
	Error      string                `json:"error,omitempty"`
	Batches    int                   `json:"batches"`
	Fallbacks  int                   `json:"fallbacks"`
	Candidates []candidate.Candidate `json:"candidates"`
}

// ===== latest_ranking =====

type latestRankingInput struct {
	IncludePartial bool `json:"include_partial,omitempty" jsonschema:"Return the latest snapshot even if it is a partial ranking"`
}

type latestRankingOutput struct {
	Found    bool               `json:"found"`
	Snapshot *consumer.Snapshot `json:"snapshot,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rank_links",
		Description: "Rank the links on a page by how likely a reader is to follow them next",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args rankLinksInput) (*mcp.CallToolResult, rankLinksOutput, error) {
		done := s.metrics.start(ctx, "rank_links")
		out, err := s.rankLinks(ctx, args)
		done(err)
		if err != nil {
			return nil, rankLinksOutput{}, err
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: summarize(out)},
			},
		}, out, nil
	})

	if s.snapshots == nil {
		return
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "latest_ranking",
		Description: "Return the most recent ranking produced by this server",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args latestRankingInput) (*mcp.CallToolResult, latestRankingOutput, error) {
		done := s.metrics.start(ctx, "latest_ranking")
		out := s.latestRanking(args)
		done(nil)
		text := "No ranking yet"
		if out.Found {
			text = fmt.Sprintf("Latest %s ranking for request %d with %d links",
				out.Snapshot.Kind(), out.Snapshot.RequestID, len(out.Snapshot.Candidates))
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})
}

func (s *Server) rankLinks(ctx context.Context, args rankLinksInput) (rankLinksOutput, error) {
	var h page.Handle
	switch {
	case args.Snapshot != "":
		h = page.Handle{URL: args.URL, Content: []byte(args.Snapshot), ContentType: "application/json"}
	case args.HTML != "":
		h = page.Handle{URL: args.URL, Content: []byte(args.HTML), ContentType: "text/html"}
	case args.URL != "":
		h = page.Handle{URL: args.URL}
	default:
		return rankLinksOutput{}, fmt.Errorf("%w: url, html or snapshot is required", errInvalidInput)
	}

	res, err := s.analyzer.Analyze(ctx, h)
	if err != nil {
		s.logger.Warn("rank_links failed", zap.String("url", h.URL), zap.Error(err))
		return rankLinksOutput{}, fmt.Errorf("rank links: %w", err)
	}
	if res.Stale {
		return rankLinksOutput{}, errSuperseded
	}

	cands := res.Candidates
	if cands == nil {
		cands = []candidate.Candidate{}
	}
	return rankLinksOutput{
		RequestID:  res.RequestID,
		URL:        res.URL,
		Status:     string(res.Status),
		Error:      res.Error,
		Batches:    res.Batches,
		Fallbacks:  res.Fallbacks,
		Candidates: cands,
	}, nil
}

func (s *Server) latestRanking(args latestRankingInput) latestRankingOutput {
	get := s.snapshots.LatestFinal
	if args.IncludePartial {
		get = s.snapshots.Latest
	}
	snap, ok := get()
	if !ok {
		return latestRankingOutput{}
	}
	return latestRankingOutput{Found: true, Snapshot: &snap}
}

// summarize renders a ranking as numbered lines for clients that only read
// text content.
func summarize(out rankLinksOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ranked %d links (status %s)", len(out.Candidates), out.Status)
	if out.Error != "" {
		fmt.Fprintf(&b, ": %s", out.Error)
	}
	for i, c := range out.Candidates {
		fmt.Fprintf(&b, "\n%d. [%.2f] %s %s", i+1, c.Score, c.Text, c.Href)
	}
	return b.String()
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close releases server resources. The analyzer is owned by the caller.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	return nil
}
