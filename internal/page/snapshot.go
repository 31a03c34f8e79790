package page

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// Snapshot is a page capture produced by a browser-side script that has
// real layout information.
type Snapshot struct {
	URL        string                `json:"url"`
	Title      string                `json:"title,omitempty"`
	Candidates []candidate.Candidate `json:"candidates"`
}

// SnapshotReader reads candidates from a JSON snapshot: either a Snapshot
// object or a bare candidate array.
type SnapshotReader struct {
	MaxCandidates int
}

// Candidates implements Collaborator.
func (r *SnapshotReader) Candidates(_ context.Context, h Handle) ([]candidate.Candidate, error) {
	snap, err := ParseSnapshot(h.Content)
	if err != nil {
		return nil, err
	}
	return r.normalize(snap.Candidates), nil
}

// ParseSnapshot decodes a snapshot document.
func ParseSnapshot(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Snapshot{}, ErrNoContent
	}

	var snap Snapshot
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &snap.Candidates); err != nil {
			return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
		}
		return snap, nil
	}
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// ReadSnapshotFile loads a snapshot from disk and returns a handle carrying
// it, addressed by the URL recorded in the snapshot.
func ReadSnapshotFile(path string) (Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Handle{}, fmt.Errorf("reading snapshot: %w", err)
	}
	snap, err := ParseSnapshot(data)
	if err != nil {
		return Handle{}, err
	}
	return Handle{URL: snap.URL, Content: data, ContentType: "application/json"}, nil
}

// normalize sanitises labels, drops label-less and duplicate links, resets
// ranking state and assigns sequence-local ids.
func (r *SnapshotReader) normalize(in []candidate.Candidate) []candidate.Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]candidate.Candidate, 0, len(in))
	for _, c := range in {
		c.Text = candidate.Label(c.Text)
		if c.Text == "" || c.Href == "" || seen[c.Href] {
			continue
		}
		seen[c.Href] = true
		c.Context.Surrounding = candidate.Truncate(candidate.Label(c.Context.Surrounding), candidate.MaxSurroundingLen)
		c.Score = 0
		c.Heuristic = 0
		c.Source = candidate.SourceNone
		out = append(out, c)
	}
	return finish(out, r.MaxCandidates)
}
