// Package page turns a displayed page into link candidates.
//
// The Collaborator interface is the boundary the ranking core consumes.
// Implementations here read a browser-captured JSON snapshot or extract
// links from HTML, optionally fetching the document over HTTP first.
package page

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// DefaultMaxCandidates bounds how many candidates one page yields.
const DefaultMaxCandidates = 20

var (
	// ErrUnsupportedContent indicates the page content type cannot be
	// inspected.
	ErrUnsupportedContent = errors.New("unsupported page content")

	// ErrNoContent indicates a handle carried neither content nor a
	// fetchable URL.
	ErrNoContent = errors.New("page has no content")
)

// Handle identifies the page to inspect. Content, when set, is used as is;
// otherwise the URL is fetched.
type Handle struct {
	URL         string
	Content     []byte
	ContentType string
}

// Collaborator produces the candidates for one page. Candidate ids are
// sequence-local, starting at 0.
type Collaborator interface {
	Candidates(ctx context.Context, h Handle) ([]candidate.Candidate, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, h Handle) ([]candidate.Candidate, error)

// Candidates implements Collaborator.
func (f CollaboratorFunc) Candidates(ctx context.Context, h Handle) ([]candidate.Candidate, error) {
	return f(ctx, h)
}

// Router dispatches a handle to the extractor matching its content type,
// fetching the URL first when the handle carries no content.
type Router struct {
	Fetcher  *Fetcher
	HTML     *HTMLExtractor
	Snapshot *SnapshotReader
}

// NewRouter returns a Router with default components.
func NewRouter(fetcher *Fetcher, maxCandidates int) *Router {
	return &Router{
		Fetcher:  fetcher,
		HTML:     NewHTMLExtractor(WithMaxCandidates(maxCandidates)),
		Snapshot: &SnapshotReader{MaxCandidates: maxCandidates},
	}
}

// Candidates implements Collaborator.
func (r *Router) Candidates(ctx context.Context, h Handle) ([]candidate.Candidate, error) {
	if len(h.Content) == 0 {
		if r.Fetcher == nil || !isHTTP(h.URL) {
			return nil, ErrNoContent
		}
		fetched, err := r.Fetcher.Fetch(ctx, h.URL)
		if err != nil {
			return nil, err
		}
		h = fetched
	}

	switch kind(h) {
	case kindJSON:
		if r.Snapshot == nil {
			return nil, fmt.Errorf("%w: json", ErrUnsupportedContent)
		}
		return r.Snapshot.Candidates(ctx, h)
	case kindHTML:
		if r.HTML == nil {
			return nil, fmt.Errorf("%w: html", ErrUnsupportedContent)
		}
		return r.HTML.Candidates(ctx, h)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContent, h.ContentType)
	}
}

type contentKind int

const (
	kindUnknown contentKind = iota
	kindHTML
	kindJSON
)

func kind(h Handle) contentKind {
	if h.ContentType != "" {
		mt, _, err := mime.ParseMediaType(h.ContentType)
		if err == nil {
			switch {
			case mt == "text/html" || mt == "application/xhtml+xml":
				return kindHTML
			case mt == "application/json" || strings.HasSuffix(mt, "+json"):
				return kindJSON
			}
			return kindUnknown
		}
	}

	// Sniff.
	trimmed := strings.TrimSpace(string(h.Content[:min(len(h.Content), 512)]))
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return kindJSON
	case strings.HasPrefix(trimmed, "<"):
		return kindHTML
	default:
		return kindUnknown
	}
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// finish applies the shared post-processing of every collaborator: cap and
// sequence-local ids.
func finish(in []candidate.Candidate, max int) []candidate.Candidate {
	if max <= 0 {
		max = DefaultMaxCandidates
	}
	if len(in) > max {
		in = in[:max]
	}
	candidate.Renumber(in)
	return in
}
