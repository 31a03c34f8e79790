package scorer

import "fmt"

// Weights are the geometry formulation weights. Each term is normalised to
// [0,1] before weighting, so with the defaults the score stays in [0,1].
type Weights struct {
	Center     float64 `koanf:"center"`     // default 0.4
	Area       float64 `koanf:"area"`       // default 0.3
	URL        float64 `koanf:"url"`        // default 0.2
	Visibility float64 `koanf:"visibility"` // default 0.1
}

// LegacyWeights are the fallback formulation weights. Terms are summed, not
// mutually exclusive, and the total may exceed 1; only the ordering matters.
type LegacyWeights struct {
	Visible     float64 `koanf:"visible"`      // default 0.3
	AboveFold   float64 `koanf:"above_fold"`   // default 0.2
	Heading     float64 `koanf:"heading"`      // default 0.25
	Main        float64 `koanf:"main"`         // default 0.15
	NotNav      float64 `koanf:"not_nav"`      // default 0.1
	LongText    float64 `koanf:"long_text"`    // default 0.1
	LongContext float64 `koanf:"long_context"` // default 0.1
}

// Thresholds are the reference values the terms are normalised against.
type Thresholds struct {
	FoldHeight     float64 `koanf:"fold_height"`      // px; above-the-fold cutoff
	URLCeiling     int     `koanf:"url_ceiling"`      // href length scoring 0
	OptimalAreaMin float64 `koanf:"optimal_area_min"` // px²
	OptimalAreaMax float64 `koanf:"optimal_area_max"` // px²
	LongTextLen    int     `koanf:"long_text_len"`
	LongContextLen int     `koanf:"long_context_len"`
}

// Config bundles all tunables of the scorer.
type Config struct {
	Weights    Weights       `koanf:"weights"`
	Legacy     LegacyWeights `koanf:"legacy"`
	Thresholds Thresholds    `koanf:"thresholds"`
}

// DefaultConfig returns the default scorer tunables.
//
// Geometry: score = center*0.4 + area*0.3 + url*0.2 + visible*0.1
// Legacy:   visible 0.3 + above fold 0.2 + heading 0.25 + main 0.15 +
// non-nav 0.1 + text length > 10 0.1 + long context 0.1
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Center:     0.4,
			Area:       0.3,
			URL:        0.2,
			Visibility: 0.1,
		},
		Legacy: LegacyWeights{
			Visible:     0.3,
			AboveFold:   0.2,
			Heading:     0.25,
			Main:        0.15,
			NotNav:      0.1,
			LongText:    0.1,
			LongContext: 0.1,
		},
		Thresholds: Thresholds{
			FoldHeight:     800,
			URLCeiling:     100,
			OptimalAreaMin: 2000,
			OptimalAreaMax: 60000,
			LongTextLen:    10,
			LongContextLen: 50,
		},
	}
}

// MergeConfig applies the non-zero values of override on top of base.
// Partial overrides from configuration files keep the remaining defaults.
func MergeConfig(base, override Config) Config {
	out := base

	mergeFloat(&out.Weights.Center, override.Weights.Center)
	mergeFloat(&out.Weights.Area, override.Weights.Area)
	mergeFloat(&out.Weights.URL, override.Weights.URL)
	mergeFloat(&out.Weights.Visibility, override.Weights.Visibility)

	mergeFloat(&out.Legacy.Visible, override.Legacy.Visible)
	mergeFloat(&out.Legacy.AboveFold, override.Legacy.AboveFold)
	mergeFloat(&out.Legacy.Heading, override.Legacy.Heading)
	mergeFloat(&out.Legacy.Main, override.Legacy.Main)
	mergeFloat(&out.Legacy.NotNav, override.Legacy.NotNav)
	mergeFloat(&out.Legacy.LongText, override.Legacy.LongText)
	mergeFloat(&out.Legacy.LongContext, override.Legacy.LongContext)

	mergeFloat(&out.Thresholds.FoldHeight, override.Thresholds.FoldHeight)
	mergeFloat(&out.Thresholds.OptimalAreaMin, override.Thresholds.OptimalAreaMin)
	mergeFloat(&out.Thresholds.OptimalAreaMax, override.Thresholds.OptimalAreaMax)
	if override.Thresholds.URLCeiling != 0 {
		out.Thresholds.URLCeiling = override.Thresholds.URLCeiling
	}
	if override.Thresholds.LongTextLen != 0 {
		out.Thresholds.LongTextLen = override.Thresholds.LongTextLen
	}
	if override.Thresholds.LongContextLen != 0 {
		out.Thresholds.LongContextLen = override.Thresholds.LongContextLen
	}

	return out
}

func mergeFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// Validate rejects negative weights and inverted reference bands.
func (c Config) Validate() error {
	for name, w := range map[string]float64{
		"weights.center":      c.Weights.Center,
		"weights.area":        c.Weights.Area,
		"weights.url":         c.Weights.URL,
		"weights.visibility":  c.Weights.Visibility,
		"legacy.visible":      c.Legacy.Visible,
		"legacy.above_fold":   c.Legacy.AboveFold,
		"legacy.heading":      c.Legacy.Heading,
		"legacy.main":         c.Legacy.Main,
		"legacy.not_nav":      c.Legacy.NotNav,
		"legacy.long_text":    c.Legacy.LongText,
		"legacy.long_context": c.Legacy.LongContext,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be >= 0, got %f", name, w)
		}
	}
	if sum := c.Weights.Center + c.Weights.Area + c.Weights.URL + c.Weights.Visibility; sum > 1.0000001 {
		return fmt.Errorf("geometry weights must sum to <= 1, got %f", sum)
	}
	if c.Thresholds.OptimalAreaMin <= 0 || c.Thresholds.OptimalAreaMax < c.Thresholds.OptimalAreaMin {
		return fmt.Errorf("optimal area band [%f, %f] is invalid", c.Thresholds.OptimalAreaMin, c.Thresholds.OptimalAreaMax)
	}
	if c.Thresholds.URLCeiling <= 0 {
		return fmt.Errorf("thresholds.url_ceiling must be > 0, got %d", c.Thresholds.URLCeiling)
	}
	return nil
}
