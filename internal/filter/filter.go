// Package filter removes links that carry no navigational content value:
// advertising, trackers, legal boilerplate, page chrome, timestamps and
// degenerate labels.
//
// The filter is a pure predicate applied per candidate. It never mutates its
// input, never fails, and is idempotent: filtering an already-filtered set
// yields the same set.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

// Rule names reported by Reject and Partition.
const (
	RulePromotional = "promotional"
	RuleCurrency    = "currency"
	RuleTracking    = "tracking"
	RuleNavigation  = "navigation"
	RuleSocial      = "social"
	RuleLegal       = "legal"
	RuleTimestamp   = "timestamp"
	RuleTextLength  = "text_length"
	RuleHrefLength  = "href_length"
	RuleDuplicate   = "duplicate"
)

// Config tunes the filter bounds and extends its lexicons.
type Config struct {
	MinTextLen         int      `koanf:"min_text_len"`
	MaxTextLen         int      `koanf:"max_text_len"`
	MaxHrefLen         int      `koanf:"max_href_len"`
	ExtraPromoTerms    []string `koanf:"extra_promo_terms"`
	ExtraTrackingHosts []string `koanf:"extra_tracking_hosts"`
}

// DefaultConfig returns the bounds from the candidate data model.
func DefaultConfig() Config {
	return Config{
		MinTextLen: candidate.MinTextLen,
		MaxTextLen: candidate.MaxTextLen,
		MaxHrefLen: candidate.MaxHrefLen,
	}
}

// Validate checks the bounds are coherent.
func (c Config) Validate() error {
	if c.MinTextLen < 0 {
		return fmt.Errorf("min_text_len must be >= 0, got %d", c.MinTextLen)
	}
	if c.MaxTextLen < c.MinTextLen {
		return fmt.Errorf("max_text_len (%d) must be >= min_text_len (%d)", c.MaxTextLen, c.MinTextLen)
	}
	if c.MaxHrefLen <= 0 {
		return fmt.Errorf("max_href_len must be > 0, got %d", c.MaxHrefLen)
	}
	return nil
}

// Filter is the compiled rule set.
type Filter struct {
	rules []rule
}

type rule struct {
	name  string
	match func(c candidate.Candidate, text, href string) bool
}

// New compiles the rule set. Zero bounds fall back to DefaultConfig.
func New(cfg Config) (*Filter, error) {
	def := DefaultConfig()
	if cfg.MinTextLen == 0 {
		cfg.MinTextLen = def.MinTextLen
	}
	if cfg.MaxTextLen == 0 {
		cfg.MaxTextLen = def.MaxTextLen
	}
	if cfg.MaxHrefLen == 0 {
		cfg.MaxHrefLen = def.MaxHrefLen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid filter config: %w", err)
	}

	promo := promoPattern
	if len(cfg.ExtraPromoTerms) > 0 {
		extra, err := termPattern(cfg.ExtraPromoTerms)
		if err != nil {
			return nil, err
		}
		promo = regexp.MustCompile(promoPattern.String() + "|" + extra)
	}

	tracking := append([]string(nil), trackingSubstrings...)
	for _, h := range cfg.ExtraTrackingHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			tracking = append(tracking, h)
		}
	}

	minLen, maxLen, maxHref := cfg.MinTextLen, cfg.MaxTextLen, cfg.MaxHrefLen

	return &Filter{rules: []rule{
		{RulePromotional, func(_ candidate.Candidate, text, _ string) bool { return promo.MatchString(text) }},
		{RuleCurrency, func(_ candidate.Candidate, text, _ string) bool { return currencyPattern.MatchString(text) }},
		{RuleTracking, func(_ candidate.Candidate, _, href string) bool { return containsAny(href, tracking) }},
		{RuleNavigation, func(_ candidate.Candidate, text, _ string) bool { return navigationPattern.MatchString(text) }},
		{RuleSocial, func(_ candidate.Candidate, text, _ string) bool { return socialPattern.MatchString(text) }},
		{RuleLegal, func(_ candidate.Candidate, text, _ string) bool { return legalPattern.MatchString(text) }},
		{RuleTimestamp, func(_ candidate.Candidate, text, _ string) bool {
			return clockPattern.MatchString(text) || relativeTimePattern.MatchString(text)
		}},
		{RuleTextLength, func(_ candidate.Candidate, text, _ string) bool {
			n := utf8.RuneCountInString(text)
			return n < minLen || n > maxLen
		}},
		{RuleHrefLength, func(c candidate.Candidate, _, _ string) bool { return len(c.Href) > maxHref }},
		{RuleDuplicate, func(_ candidate.Candidate, text, _ string) bool { return duplicatePattern.MatchString(text) }},
	}}, nil
}

// Reject reports the first rule that rejects c.
func (f *Filter) Reject(c candidate.Candidate) (string, bool) {
	text := strings.TrimSpace(c.Text)
	href := strings.ToLower(c.Href)
	for _, r := range f.rules {
		if r.match(c, text, href) {
			return r.name, true
		}
	}
	return "", false
}

// Apply returns the candidates that pass every rule, in input order.
func (f *Filter) Apply(in []candidate.Candidate) []candidate.Candidate {
	kept, _ := f.Partition(in)
	return kept
}

// Partition returns the kept candidates and a count of rejections per rule.
func (f *Filter) Partition(in []candidate.Candidate) ([]candidate.Candidate, map[string]int) {
	kept := make([]candidate.Candidate, 0, len(in))
	rejected := make(map[string]int)
	for _, c := range in {
		if name, ok := f.Reject(c); ok {
			rejected[name]++
			continue
		}
		kept = append(kept, c)
	}
	return kept, rejected
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func termPattern(terms []string) (string, error) {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	if len(quoted) == 0 {
		return "", fmt.Errorf("extra_promo_terms contains only blank entries")
	}
	expr := `(?i)\b(` + strings.Join(quoted, "|") + `)\b`
	if _, err := regexp.Compile(expr); err != nil {
		return "", fmt.Errorf("invalid extra promo terms: %w", err)
	}
	return expr, nil
}
