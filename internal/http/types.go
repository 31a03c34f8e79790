package http

import (
	"encoding/json"
	"errors"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

// RankRequest is the request body for POST /api/v1/rank and
// POST /api/v1/trigger. Exactly one source is used, in this order: a
// captured snapshot, inline HTML, or the URL fetched by the server.
type RankRequest struct {
	URL      string          `json:"url"`
	HTML     string          `json:"html,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

func (r RankRequest) handle() (page.Handle, error) {
	switch {
	case len(r.Snapshot) > 0:
		return page.Handle{URL: r.URL, Content: r.Snapshot, ContentType: "application/json"}, nil
	case r.HTML != "":
		return page.Handle{URL: r.URL, Content: []byte(r.HTML), ContentType: "text/html"}, nil
	case r.URL != "":
		return page.Handle{URL: r.URL}, nil
	default:
		return page.Handle{}, errors.New("url, html or snapshot is required")
	}
}

// RankResponse is the response body for POST /api/v1/rank.
type RankResponse struct {
	RequestID  uint64                `json:"request_id"`
	URL        string                `json:"url"`
	Status     string                `json:"status"`
	Error      string                `json:"error,omitempty"`
	Batches    int                   `json:"batches"`
	Fallbacks  int                   `json:"fallbacks"`
	Candidates []candidate.Candidate `json:"candidates"`
}

func newRankResponse(res orchestrator.Result) RankResponse {
	cands := res.Candidates
	if cands == nil {
		cands = []candidate.Candidate{}
	}
	return RankResponse{
		RequestID:  res.RequestID,
		URL:        res.URL,
		Status:     string(res.Status),
		Error:      res.Error,
		Batches:    res.Batches,
		Fallbacks:  res.Fallbacks,
		Candidates: cands,
	}
}

// TriggerResponse is the response body for POST /api/v1/trigger.
type TriggerResponse struct {
	RequestID uint64 `json:"request_id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
