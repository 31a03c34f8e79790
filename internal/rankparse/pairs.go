package rankparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PairsName is the name of the per-link rank protocol.
const PairsName = "pairs"

var pairPatterns = []*regexp.Regexp{
	// 3:9, 3 : 9
	regexp.MustCompile(`(\d+)[ \t]*:[ \t]*(\d+)`),
	// ID 3 9, id 3 rank 9
	regexp.MustCompile(`(?i)\bid[ \t]*#?(\d+)[ \t]+(?:rank[ \t]*)?(\d+)`),
	// a bare "3,9" line, LF or CRLF terminated
	regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]*,[ \t]*(\d+)[ \t]*\r?$`),
}

// Pairs expects one "ID:RANK" line per link, rank 1-10 with 10 the most
// relevant. It also accepts "ID <id> <rank>" and bare "id,rank" lines.
type Pairs struct{}

// Name implements Protocol.
func (Pairs) Name() string { return PairsName }

// FormatInstruction implements Protocol.
func (Pairs) FormatInstruction(ids []int) string {
	var sb strings.Builder
	sb.WriteString("Answer with one line per link in the form ID:RANK, where RANK is a number from 1 to 10 and 10 means most relevant.\n")
	sb.WriteString("Use only these ids: ")
	sb.WriteString(joinInts(ids))
	sb.WriteString(".\nExample:\n")
	for i, id := range ids {
		if i == 2 {
			break
		}
		fmt.Fprintf(&sb, "%d:%d\n", id, MaxRank-i*2)
	}
	sb.WriteString("Output nothing else.")
	return sb.String()
}

// Scan implements Protocol.
func (Pairs) Scan(buf string, final bool) []Match {
	var out []Match
	for _, re := range pairPatterns {
		for _, loc := range re.FindAllStringSubmatchIndex(buf, -1) {
			if !final && loc[1] >= len(buf) {
				continue
			}
			id, err := strconv.Atoi(buf[loc[2]:loc[3]])
			if err != nil {
				continue
			}
			rank, err := strconv.Atoi(buf[loc[4]:loc[5]])
			if err != nil || rank == 0 {
				continue
			}
			out = append(out, Match{ID: id, Rank: rank})
		}
	}
	return out
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ", ")
}
