// Package prompt builds the ranking instruction sent to the generation engine
// for one batch of candidates.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// MaxBatch is the hard upper bound on candidates per prompt.
const MaxBatch = 10

// ErrEmptyBatch is returned when Build is called without candidates.
var ErrEmptyBatch = errors.New("prompt: empty batch")

// Format supplies the output-format instruction for a ranking protocol.
type Format interface {
	FormatInstruction(ids []int) string
}

const instruction = `You rank links on a web page by how useful they are to follow.
Rank only links that lead to substantive content, most important first.
Ignore promotional, sponsored, duplicate and mirror links.`

// Builder renders prompts. The zero value is usable.
type Builder struct {
	// Preamble replaces the default ranking instruction when non-empty.
	Preamble string

	// MaxSurrounding bounds the context snippet appended to each line.
	// Zero omits the snippet.
	MaxSurrounding int
}

// Build renders the prompt for batch using the protocol's output format.
func (b Builder) Build(batch []candidate.Candidate, format Format) (string, error) {
	if len(batch) == 0 {
		return "", ErrEmptyBatch
	}
	if len(batch) > MaxBatch {
		return "", fmt.Errorf("prompt: batch of %d exceeds limit %d", len(batch), MaxBatch)
	}

	var sb strings.Builder

	preamble := b.Preamble
	if preamble == "" {
		preamble = instruction
	}
	sb.WriteString(preamble)
	sb.WriteString("\n\nLinks:\n")

	ids := make([]int, 0, len(batch))
	for _, c := range batch {
		ids = append(ids, c.ID)
		sb.WriteString(b.line(c))
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	sb.WriteString(format.FormatInstruction(ids))
	return sb.String(), nil
}

func (b Builder) line(c candidate.Candidate) string {
	label := candidate.Label(c.Text)
	if label == "" {
		label = c.Href
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. %s", c.ID, label)
	if tag := Tag(c.Context); tag != "" {
		sb.WriteString(" ")
		sb.WriteString(tag)
	}
	if b.MaxSurrounding > 0 {
		if s := candidate.Label(c.Context.Surrounding); s != "" {
			fmt.Fprintf(&sb, " (%s)", candidate.Truncate(s, b.MaxSurrounding))
		}
	}
	return sb.String()
}

// Tag returns the positional hint for a candidate, or "".
func Tag(ctx candidate.LinkContext) string {
	switch {
	case ctx.InHeading:
		return "[heading]"
	case ctx.InMain:
		return "[main]"
	default:
		return ""
	}
}
