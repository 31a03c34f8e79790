// Package scorer computes the deterministic heuristic score of a link
// candidate from its geometry and page context.
//
// Two formulations exist. The geometry score (Score) is normalised to [0,1]
// and bounds the batch size before the engine is consulted. The legacy score
// (Legacy) is a looser sum used only to order candidates when the engine
// yields no usable signal. Both are pure functions of the candidate.
package scorer

import (
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// Scorer holds a validated configuration.
type Scorer struct {
	cfg Config
}

// New creates a Scorer. A zero Config uses DefaultConfig; partial configs are
// merged over the defaults.
func New(cfg Config) (*Scorer, error) {
	merged := MergeConfig(DefaultConfig(), cfg)
	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scorer config: %w", err)
	}
	return &Scorer{cfg: merged}, nil
}

// Default returns a Scorer with DefaultConfig.
func Default() *Scorer {
	return &Scorer{cfg: DefaultConfig()}
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score returns the geometry score in [0,1].
func (s *Scorer) Score(c candidate.Candidate) float64 {
	w := s.cfg.Weights
	pos := c.Context.Position

	urlTerm := pos.URLScore
	if urlTerm == 0 {
		urlTerm = URLBrevity(c.Href, s.cfg.Thresholds.URLCeiling)
	}
	areaTerm := pos.AreaScore
	if areaTerm == 0 {
		areaTerm = AreaFit(pos.Width, pos.Height, s.cfg.Thresholds.OptimalAreaMin, s.cfg.Thresholds.OptimalAreaMax)
	}

	score := clamp01(pos.CenterScore)*w.Center +
		clamp01(areaTerm)*w.Area +
		clamp01(urlTerm)*w.URL +
		boolTerm(pos.Visible)*w.Visibility

	return clamp01(score)
}

// Legacy returns the fallback score. It may exceed 1.
func (s *Scorer) Legacy(c candidate.Candidate) float64 {
	w := s.cfg.Legacy
	t := s.cfg.Thresholds
	ctx := c.Context

	score := 0.0
	if ctx.Position.Visible {
		score += w.Visible
	}
	if ctx.Position.VerticalOffset < t.FoldHeight {
		score += w.AboveFold
	}
	if ctx.InHeading {
		score += w.Heading
	}
	if ctx.InMain {
		score += w.Main
	}
	if !ctx.InNav {
		score += w.NotNav
	}
	if utf8.RuneCountInString(c.Text) > t.LongTextLen {
		score += w.LongText
	}
	if utf8.RuneCountInString(ctx.Surrounding) > t.LongContextLen {
		score += w.LongContext
	}
	return score
}

// LegacyMax is the largest value Legacy can produce with the current weights.
func (s *Scorer) LegacyMax() float64 {
	w := s.cfg.Legacy
	return w.Visible + w.AboveFold + w.Heading + w.Main + w.NotNav + w.LongText + w.LongContext
}

// Normalized maps the legacy score into [0,1] for display.
func (s *Scorer) Normalized(c candidate.Candidate) float64 {
	max := s.LegacyMax()
	if max <= 0 {
		return 0
	}
	return clamp01(s.Legacy(c) / max)
}

// Annotate writes the geometry score into each candidate's Heuristic field.
func (s *Scorer) Annotate(in []candidate.Candidate) {
	for i := range in {
		in[i].Heuristic = s.Score(in[i])
	}
}

// Cap returns at most n candidates with the highest geometry score, ties
// broken by ascending id. The result is a new slice in that order.
func (s *Scorer) Cap(in []candidate.Candidate, n int) []candidate.Candidate {
	out := candidate.Clone(in)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := s.Score(out[i]), s.Score(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// FallbackOrder returns the deterministic total order used when the engine
// yields no usable signal: legacy score, then geometry score, both
// descending, then ascending id.
func (s *Scorer) FallbackOrder(in []candidate.Candidate) []candidate.Candidate {
	out := candidate.Clone(in)
	sort.SliceStable(out, func(i, j int) bool {
		li, lj := s.Legacy(out[i]), s.Legacy(out[j])
		if li != lj {
			return li > lj
		}
		gi, gj := s.Score(out[i]), s.Score(out[j])
		if gi != gj {
			return gi > gj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CenterProximity is 1 at the viewport center and falls to 0 at the
// farthest viewport corner.
func CenterProximity(centerX, centerY, viewportW, viewportH float64) float64 {
	if viewportW <= 0 || viewportH <= 0 {
		return 0
	}
	dx := centerX - viewportW/2
	dy := centerY - viewportH/2
	maxDist := math.Hypot(viewportW/2, viewportH/2)
	return clamp01(1 - math.Hypot(dx, dy)/maxDist)
}

// AreaFit is 1 inside the optimal band and decays proportionally for both
// tiny and huge elements.
func AreaFit(width, height, optimalMin, optimalMax float64) float64 {
	area := width * height
	switch {
	case area <= 0 || optimalMin <= 0:
		return 0
	case area < optimalMin:
		return clamp01(area / optimalMin)
	case area > optimalMax:
		return clamp01(optimalMax / area)
	default:
		return 1
	}
}

// URLBrevity is 1 for an empty-path href and 0 at or beyond ceiling bytes.
func URLBrevity(href string, ceiling int) float64 {
	if ceiling <= 0 || href == "" {
		return 0
	}
	return clamp01(1 - float64(len(href))/float64(ceiling))
}

func boolTerm(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
