package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

var (
	rankHTML     string
	rankSnapshot string
	rankStream   bool
)

var rankCmd = &cobra.Command{
	Use:   "rank [url]",
	Short: "Rank the links of one page",
	Long: `Rank the links of a page and print the final ranking as JSON.

The page is fetched from the URL, read from a saved HTML file, or read from a
JSON snapshot captured in the browser. With --stream every partial snapshot is
printed as a JSON line as batches complete.

Examples:
  # Fetch and rank a page
  linkrank rank https://en.wikipedia.org/wiki/Go_(programming_language)

  # Rank a saved page; the URL resolves relative links
  linkrank rank --html page.html https://example.com/

  # Rank a browser snapshot and show partial results
  linkrank rank --snapshot capture.json --stream`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVar(&rankHTML, "html", "", "read the page from an HTML file")
	rankCmd.Flags().StringVar(&rankSnapshot, "snapshot", "", "read candidates from a JSON snapshot file")
	rankCmd.Flags().BoolVar(&rankStream, "stream", false, "print partial snapshots as JSON lines")
	rankCmd.MarkFlagsMutuallyExclusive("html", "snapshot")
}

func runRank(cmd *cobra.Command, args []string) error {
	var url string
	if len(args) == 1 {
		url = args[0]
	}
	h, err := loadHandle(url, rankHTML, rankSnapshot)
	if err != nil {
		return err
	}

	opts := appOptions{publish: true, stdoutReserved: true}
	if rankStream {
		opts.sinks = append(opts.sinks, consumer.NewJSONLines(cmd.OutOrStdout(), false))
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	res, err := a.analyzer.Analyze(ctx, h)
	if err != nil {
		return fmt.Errorf("rank %s: %w", h.URL, err)
	}
	if rankStream {
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(newRankOutput(res))
}

// loadHandle builds the page handle from a URL and optional local content.
func loadHandle(url, htmlPath, snapshotPath string) (page.Handle, error) {
	switch {
	case snapshotPath != "":
		h, err := page.ReadSnapshotFile(snapshotPath)
		if err != nil {
			return page.Handle{}, err
		}
		if url != "" {
			h.URL = url
		}
		return h, nil
	case htmlPath != "":
		data, err := os.ReadFile(htmlPath)
		if err != nil {
			return page.Handle{}, fmt.Errorf("reading html: %w", err)
		}
		if url == "" {
			abs, err := filepath.Abs(htmlPath)
			if err != nil {
				return page.Handle{}, err
			}
			url = "file://" + filepath.ToSlash(abs)
		}
		return page.Handle{URL: url, Content: data, ContentType: "text/html"}, nil
	case url != "":
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return page.Handle{}, fmt.Errorf("URL must be http or https: %q", url)
		}
		return page.Handle{URL: url}, nil
	default:
		return page.Handle{}, errors.New("a URL, --html or --snapshot is required")
	}
}

// rankOutput is the JSON document printed by rank.
type rankOutput struct {
	RequestID  uint64                `json:"request_id"`
	URL        string                `json:"url"`
	Status     consumer.Status       `json:"status"`
	Error      string                `json:"error,omitempty"`
	Batches    int                   `json:"batches"`
	Fallbacks  int                   `json:"fallbacks"`
	Candidates []candidate.Candidate `json:"candidates"`
}

func newRankOutput(res orchestrator.Result) rankOutput {
	cands := res.Candidates
	if cands == nil {
		cands = []candidate.Candidate{}
	}
	return rankOutput{
		RequestID:  res.RequestID,
		URL:        res.URL,
		Status:     res.Status,
		Error:      res.Error,
		Batches:    res.Batches,
		Fallbacks:  res.Fallbacks,
		Candidates: cands,
	}
}
