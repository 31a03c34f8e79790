package scorer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

func withPosition(id int, pos candidate.Position) candidate.Candidate {
	return candidate.Candidate{
		ID:      id,
		Text:    "Candidate link",
		Href:    "https://example.com/" + strings.Repeat("a", id),
		Context: candidate.LinkContext{Position: pos},
	}
}

func TestScore_Weights(t *testing.T) {
	s := Default()

	tests := []struct {
		name string
		pos  candidate.Position
		want float64
	}{
		{
			name: "all terms maxed",
			pos:  candidate.Position{CenterScore: 1, AreaScore: 1, URLScore: 1, Visible: true},
			want: 1.0,
		},
		{
			name: "center only",
			pos:  candidate.Position{CenterScore: 1, URLScore: -1},
			want: 0.4,
		},
		{
			name: "visibility only",
			pos:  candidate.Position{Visible: true, URLScore: -1},
			want: 0.1,
		},
		{
			name: "out of range terms are clamped",
			pos:  candidate.Position{CenterScore: 5, AreaScore: -3, URLScore: 2},
			want: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(withPosition(0, tt.pos))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScore_Bounded(t *testing.T) {
	s := Default()
	for i := 0; i < 50; i++ {
		c := withPosition(i, candidate.Position{
			CenterScore: float64(i%7) / 3,
			AreaScore:   float64(i%5) / 2,
			Visible:     i%2 == 0,
		})
		got := s.Score(c)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestScore_URLBrevityFallback(t *testing.T) {
	s := Default()
	short := candidate.Candidate{ID: 0, Href: "https://a.io"}
	long := candidate.Candidate{ID: 1, Href: "https://example.com/" + strings.Repeat("x", 60)}
	assert.Greater(t, s.Score(short), s.Score(long))
}

func TestScore_AreaFitFallback(t *testing.T) {
	s := Default()
	sized := withPosition(0, candidate.Position{Width: 200, Height: 40, URLScore: -1})
	bare := withPosition(1, candidate.Position{URLScore: -1})

	assert.InDelta(t, 0.3, s.Score(sized), 1e-9, "in-band area earns the full area weight")
	assert.InDelta(t, 0.0, s.Score(bare), 1e-9)

	scored := withPosition(2, candidate.Position{AreaScore: 0.5, Width: 200, Height: 40, URLScore: -1})
	assert.InDelta(t, 0.15, s.Score(scored), 1e-9, "an explicit area score wins")
}

func TestLegacy(t *testing.T) {
	s := Default()

	full := candidate.Candidate{
		Text: "A descriptive link label",
		Context: candidate.LinkContext{
			Surrounding: strings.Repeat("context ", 10),
			InHeading:   true,
			InMain:      true,
			Position:    candidate.Position{Visible: true, VerticalOffset: 100},
		},
	}
	assert.InDelta(t, 1.2, s.Legacy(full), 1e-9)
	assert.InDelta(t, 1.2, s.LegacyMax(), 1e-9)
	assert.InDelta(t, 1.0, s.Normalized(full), 1e-9)

	nav := candidate.Candidate{
		Text: "Home",
		Context: candidate.LinkContext{
			InNav:    true,
			Position: candidate.Position{VerticalOffset: 2000},
		},
	}
	assert.InDelta(t, 0.0, s.Legacy(nav), 1e-9)

	belowFold := full
	belowFold.Context.Position.VerticalOffset = 1200
	assert.InDelta(t, 1.0, s.Legacy(belowFold), 1e-9)
}

func TestCap(t *testing.T) {
	s := Default()

	in := []candidate.Candidate{
		withPosition(0, candidate.Position{CenterScore: 0.1, URLScore: -1}),
		withPosition(1, candidate.Position{CenterScore: 0.9, URLScore: -1}),
		withPosition(2, candidate.Position{CenterScore: 0.5, URLScore: -1}),
		withPosition(3, candidate.Position{CenterScore: 0.9, URLScore: -1}),
	}

	out := s.Cap(in, 3)
	assert.Equal(t, []int{1, 3, 2}, candidate.IDs(out))
	assert.Equal(t, []int{0, 1, 2, 3}, candidate.IDs(in), "input must not be reordered")

	assert.Len(t, s.Cap(in, 0), 4, "zero cap keeps everything")
	assert.Len(t, s.Cap(in, 10), 4)
}

func TestFallbackOrder_Deterministic(t *testing.T) {
	s := Default()

	in := []candidate.Candidate{
		{ID: 0, Text: "Home", Context: candidate.LinkContext{InNav: true, Position: candidate.Position{VerticalOffset: 5000}}},
		{ID: 1, Text: "Main article headline", Context: candidate.LinkContext{InHeading: true, InMain: true, Position: candidate.Position{Visible: true}}},
		{ID: 2, Text: "Sidebar link", Context: candidate.LinkContext{Position: candidate.Position{Visible: true}}},
		{ID: 3, Text: "Sidebar link", Context: candidate.LinkContext{Position: candidate.Position{Visible: true}}},
	}

	first := s.FallbackOrder(in)
	assert.Equal(t, []int{1, 2, 3, 0}, candidate.IDs(first))

	reversed := make([]candidate.Candidate, len(in))
	for i := range in {
		reversed[len(in)-1-i] = in[i]
	}
	assert.Equal(t, candidate.IDs(first), candidate.IDs(s.FallbackOrder(reversed)),
		"order must not depend on input order")
}

func TestAnnotate(t *testing.T) {
	s := Default()
	in := []candidate.Candidate{
		withPosition(0, candidate.Position{CenterScore: 1, URLScore: -1}),
	}
	s.Annotate(in)
	assert.InDelta(t, 0.4, in[0].Heuristic, 1e-9)
}

func TestCenterProximity(t *testing.T) {
	assert.InDelta(t, 1.0, CenterProximity(640, 360, 1280, 720), 1e-9)
	assert.InDelta(t, 0.0, CenterProximity(0, 0, 1280, 720), 1e-9)
	assert.InDelta(t, 0.5, CenterProximity(320, 180, 1280, 720), 1e-9)
	assert.Equal(t, 0.0, CenterProximity(10, 10, 0, 0))
}

func TestAreaFit(t *testing.T) {
	assert.Equal(t, 1.0, AreaFit(200, 20, 2000, 60000))
	assert.InDelta(t, 0.5, AreaFit(50, 20, 2000, 60000), 1e-9)
	assert.InDelta(t, 0.5, AreaFit(1200, 100, 2000, 60000), 1e-9)
	assert.Equal(t, 0.0, AreaFit(0, 20, 2000, 60000))
}

func TestURLBrevity(t *testing.T) {
	assert.Equal(t, 0.0, URLBrevity("", 100))
	assert.InDelta(t, 0.5, URLBrevity(strings.Repeat("a", 50), 100), 1e-9)
	assert.Equal(t, 0.0, URLBrevity(strings.Repeat("a", 150), 100))
}

func TestNew_Merge(t *testing.T) {
	s, err := New(Config{Weights: Weights{Center: 0.3}})
	require.NoError(t, err)
	cfg := s.Config()
	assert.Equal(t, 0.3, cfg.Weights.Center)
	assert.Equal(t, 0.3, cfg.Weights.Area, "unset fields keep defaults")
	assert.Equal(t, 800.0, cfg.Thresholds.FoldHeight)
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(Config{Weights: Weights{Center: 0.9}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")

	_, err = New(Config{Legacy: LegacyWeights{Heading: -1}})
	require.Error(t, err)

	_, err = New(Config{Thresholds: Thresholds{OptimalAreaMin: 9000, OptimalAreaMax: 10}})
	require.Error(t, err)
}
