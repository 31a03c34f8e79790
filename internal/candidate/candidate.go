// Package candidate defines the link candidates that flow through one ranking
// cycle: the page collaborator creates them, the filter and scorer inspect
// them, and the orchestrator refines their scores as rank signals arrive.
//
// Candidates live for exactly one analysis request and are never persisted.
package candidate

// Source records which stage produced a candidate's current Score.
type Source string

const (
	// SourceNone means no ranking signal has been applied yet.
	SourceNone Source = ""
	// SourceModel means the score came from a resolved engine rank.
	SourceModel Source = "model"
	// SourceHeuristic means the score came from the fallback ordering.
	SourceHeuristic Source = "heuristic"
)

// Position is the geometry snapshot of a candidate at extraction time.
// CenterScore, AreaScore and URLScore are pre-normalised to [0,1] by the
// page collaborator when it has layout information.
type Position struct {
	VerticalOffset float64 `json:"vertical_offset"`
	Visible        bool    `json:"visible"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	CenterScore    float64 `json:"center_score"`
	AreaScore      float64 `json:"area_score"`
	URLScore       float64 `json:"url_score"`
}

// LinkContext describes where on the page a candidate sits.
type LinkContext struct {
	Surrounding  string   `json:"surrounding,omitempty"` // nearby text, at most 100 chars
	InHeading    bool     `json:"in_heading"`
	InNav        bool     `json:"in_nav"`
	InMain       bool     `json:"in_main"`
	SearchResult bool     `json:"search_result"`
	VideoLink    bool     `json:"video_link"`
	WikiLink     bool     `json:"wiki_link"`
	Position     Position `json:"position"`
}

// Candidate is one clickable element under consideration.
//
// ID is unique within one analysis and stable for its duration. Score starts
// at 0 and is replaced, never accumulated, as ranking information arrives.
type Candidate struct {
	ID        int         `json:"id"`
	Text      string      `json:"text"`
	Href      string      `json:"href"`
	Context   LinkContext `json:"context"`
	Score     float64     `json:"score"`
	Heuristic float64     `json:"heuristic"`
	Source    Source      `json:"source,omitempty"`
}

// Limits on candidate shape. Collaborators truncate to these; the filter
// rejects anything outside them.
const (
	MinTextLen        = 3
	MaxTextLen        = 150
	MaxHrefLen        = 130
	MaxSurroundingLen = 100
)

// Clone returns a deep copy of the slice so callers can mutate scores
// without touching another stage's view.
func Clone(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}

// IDs returns the candidate ids in slice order.
func IDs(in []Candidate) []int {
	ids := make([]int, len(in))
	for i, c := range in {
		ids[i] = c.ID
	}
	return ids
}

// Index maps candidate id to its slice position.
func Index(in []Candidate) map[int]int {
	idx := make(map[int]int, len(in))
	for i, c := range in {
		idx[c.ID] = i
	}
	return idx
}

// Renumber assigns sequential ids starting at 0 in slice order. Collaborators
// call it once per analysis so ids are sequence-local.
func Renumber(in []Candidate) {
	for i := range in {
		in[i].ID = i
	}
}
