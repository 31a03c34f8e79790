package page

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

const snapshotJSON = `{
  "url": "https://news.example.com/",
  "candidates": [
    {"id": 7, "text": "• Markets rally  1.2M views", "href": "https://news.example.com/markets", "score": 0.9,
     "context": {"in_main": true, "surrounding": "Stocks climbed on Tuesday", "position": {"visible": true, "center_score": 0.8}}},
    {"id": 9, "text": "   ", "href": "https://news.example.com/empty"},
    {"id": 3, "text": "Weather", "href": "https://news.example.com/weather"},
    {"id": 4, "text": "Weather again", "href": "https://news.example.com/weather"}
  ]
}`

func TestSnapshotReader(t *testing.T) {
	r := &SnapshotReader{}
	out, err := r.Candidates(context.Background(), Handle{Content: []byte(snapshotJSON)})
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, []int{0, 1}, candidate.IDs(out))
	assert.Equal(t, "Markets rally", out[0].Text)
	assert.Zero(t, out[0].Score, "incoming scores are reset")
	assert.True(t, out[0].Context.InMain)
	assert.InDelta(t, 0.8, out[0].Context.Position.CenterScore, 1e-9)
	assert.Equal(t, "Weather", out[1].Text)
}

func TestParseSnapshot_BareArray(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`[{"text":"Docs","href":"https://go.dev/doc"}]`))
	require.NoError(t, err)
	require.Len(t, snap.Candidates, 1)
	assert.Equal(t, "https://go.dev/doc", snap.Candidates[0].Href)

	_, err = ParseSnapshot([]byte("  "))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = ParseSnapshot([]byte("{not json"))
	require.Error(t, err)
}

func TestReadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(snapshotJSON), 0o600))

	h, err := ReadSnapshotFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://news.example.com/", h.URL)
	assert.Equal(t, "application/json", h.ContentType)

	cands, err := (&SnapshotReader{}).Candidates(context.Background(), h)
	require.NoError(t, err)
	assert.Len(t, cands, 2)

	_, err = ReadSnapshotFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter(nil, 0)
	ctx := context.Background()

	out, err := r.Candidates(ctx, Handle{Content: []byte(snapshotJSON)})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = r.Candidates(ctx, Handle{
		URL:         "https://go.dev/",
		Content:     []byte(`<html><body><a href="/doc">Documentation index</a></body></html>`),
		ContentType: "text/html; charset=utf-8",
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://go.dev/doc", out[0].Href)

	_, err = r.Candidates(ctx, Handle{Content: []byte("%PDF-1.7"), ContentType: "application/pdf"})
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = r.Candidates(ctx, Handle{Content: []byte("plain words")})
	assert.ErrorIs(t, err, ErrUnsupportedContent)

	_, err = r.Candidates(ctx, Handle{URL: "https://go.dev/"})
	assert.ErrorIs(t, err, ErrNoContent, "no fetcher configured")
}

func TestRouter_Fetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "linkrank")
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><main><a href="/article/1">First article title</a></main></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewRouter(NewFetcher(FetcherConfig{}), 0)
	out, err := r.Candidates(context.Background(), Handle{URL: srv.URL + "/page"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, srv.URL+"/article/1", out[0].Href)
	assert.True(t, out[0].Context.InMain)

	_, err = r.Candidates(context.Background(), Handle{URL: srv.URL + "/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetcher_RejectsNonHTTP(t *testing.T) {
	_, err := NewFetcher(FetcherConfig{}).Fetch(context.Background(), "file:///etc/passwd")
	require.Error(t, err)
}

func TestCollaboratorFunc(t *testing.T) {
	var c Collaborator = CollaboratorFunc(func(context.Context, Handle) ([]candidate.Candidate, error) {
		return []candidate.Candidate{{ID: 0, Text: "x"}}, nil
	})
	out, err := c.Candidates(context.Background(), Handle{})
	require.NoError(t, err)
	assert.Len(t, out, 1)
}
