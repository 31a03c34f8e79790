package rankparse

import (
	"regexp"
	"strconv"
	"strings"
)

// ListName is the name of the single-line ranked list protocol.
const ListName = "list"

var (
	intPattern    = regexp.MustCompile(`\d+`)
	markerPattern = regexp.MustCompile(`(?i)\branking[ \t]*:`)
)

// List expects a single "RANKING: id,id,id" line ordered from most to least
// relevant. Integers after the last RANKING marker are taken as ids in
// first-seen order; the session maps position p to rank max(1, 10-p).
// Without a marker the answer is read with the Pairs patterns, so a model
// that ignores the instruction and answers "id:rank" keeps its graded ranks.
type List struct{}

// Name implements Protocol.
func (List) Name() string { return ListName }

// FormatInstruction implements Protocol.
func (List) FormatInstruction(ids []int) string {
	var sb strings.Builder
	sb.WriteString("Answer with a single line of the form RANKING: id,id,id listing the ids from most to least relevant.\n")
	sb.WriteString("Use only these ids: ")
	sb.WriteString(joinInts(ids))
	sb.WriteString(".\nOutput nothing else.")
	return sb.String()
}

// Scan implements Protocol. Matches read after a marker carry a zero Rank.
func (List) Scan(buf string, final bool) []Match {
	marks := markerPattern.FindAllStringIndex(buf, -1)
	if len(marks) == 0 {
		return Pairs{}.Scan(buf, final)
	}
	start := marks[len(marks)-1][1]

	var out []Match
	for _, loc := range intPattern.FindAllStringIndex(buf[start:], -1) {
		if !final && start+loc[1] >= len(buf) {
			continue
		}
		id, err := strconv.Atoi(buf[start+loc[0] : start+loc[1]])
		if err != nil {
			continue
		}
		out = append(out, Match{ID: id})
	}
	return out
}
