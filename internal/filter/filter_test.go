package filter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
)

func link(id int, text, href string) candidate.Candidate {
	return candidate.Candidate{ID: id, Text: text, Href: href}
}

func newDefault(t *testing.T) *Filter {
	t.Helper()
	f, err := New(DefaultConfig())
	require.NoError(t, err)
	return f
}

func TestFilter_Reject(t *testing.T) {
	f := newDefault(t)

	tests := []struct {
		name     string
		text     string
		href     string
		wantRule string
	}{
		{"sponsored with price", "Sponsored: Buy now $20", "https://shop.example.com/p/1", RulePromotional},
		{"bare price", "Only €15 this week", "https://example.com/a", RuleCurrency},
		{"price with currency word", "Upgrade for 20 USD", "https://example.com/b", RuleCurrency},
		{"tracking href", "Interesting article", "https://example.com/a?utm_source=feed", RuleTracking},
		{"ad server href", "Interesting article", "https://ad.doubleclick.net/x", RuleTracking},
		{"navigation word", "Next", "https://example.com/page/2", RuleNavigation},
		{"skip link", "Skip to main content", "https://example.com/#main", RuleNavigation},
		{"share action", "Share on Facebook", "https://example.com/share", RuleSocial},
		{"follow action", "Follow us", "https://example.com/follow", RuleSocial},
		{"privacy link", "Privacy Policy", "https://example.com/privacy", RuleLegal},
		{"copyright glyph", "© 2024 Example Corp", "https://example.com/about", RuleLegal},
		{"clock duration", "12:34", "https://example.com/watch?v=1", RuleTimestamp},
		{"relative time", "3 hours ago", "https://example.com/post/1", RuleTimestamp},
		{"too short", "Go", "https://go.dev", RuleTextLength},
		{"too long", strings.Repeat("x", candidate.MaxTextLen+1), "https://example.com/l", RuleTextLength},
		{"href too long", "Long destination", "https://example.com/" + strings.Repeat("p", candidate.MaxHrefLen), RuleHrefLength},
		{"mirror", "Download mirror", "https://example.com/dl", RuleDuplicate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, rejected := f.Reject(link(0, tt.text, tt.href))
			assert.True(t, rejected, "expected %q to be rejected", tt.text)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestFilter_Keeps(t *testing.T) {
	f := newDefault(t)

	keep := []candidate.Candidate{
		link(0, "Understanding the Go memory model", "https://go.dev/ref/mem"),
		link(1, "Effective Go", "https://go.dev/doc/effective_go"),
		link(2, "Garbage collector guide", "https://tip.golang.org/doc/gc-guide"),
	}
	for _, c := range keep {
		rule, rejected := f.Reject(c)
		assert.False(t, rejected, "%q rejected by %s", c.Text, rule)
	}
}

func TestFilter_ApplyPreservesOrder(t *testing.T) {
	f := newDefault(t)

	in := []candidate.Candidate{
		link(0, "Effective Go", "https://go.dev/doc/effective_go"),
		link(1, "Sponsored: Buy now $20", "https://shop.example.com"),
		link(2, "Go memory model", "https://go.dev/ref/mem"),
		link(3, "Privacy", "https://go.dev/privacy"),
		link(4, "Package documentation", "https://pkg.go.dev"),
	}

	out := f.Apply(in)
	assert.Equal(t, []int{0, 2, 4}, candidate.IDs(out))
	assert.Len(t, in, 5, "input must not be mutated")
}

func TestFilter_Idempotent(t *testing.T) {
	f := newDefault(t)

	in := []candidate.Candidate{
		link(0, "Effective Go", "https://go.dev/doc/effective_go"),
		link(1, "Menu", "https://go.dev/#menu"),
		link(2, "Go memory model", "https://go.dev/ref/mem"),
		link(3, "Cookie settings", "https://go.dev/cookies"),
		link(4, "5 min", "https://go.dev/talks"),
	}

	once := f.Apply(in)
	twice := f.Apply(once)
	assert.Equal(t, once, twice)
}

func TestFilter_Partition(t *testing.T) {
	f := newDefault(t)

	in := []candidate.Candidate{
		link(0, "Effective Go", "https://go.dev/doc/effective_go"),
		link(1, "Next", "https://go.dev/2"),
		link(2, "Back", "https://go.dev/1"),
		link(3, "Terms of Service", "https://go.dev/tos"),
	}

	kept, rejected := f.Partition(in)
	assert.Len(t, kept, 1)
	assert.Equal(t, 2, rejected[RuleNavigation])
	assert.Equal(t, 1, rejected[RuleLegal])
}

func TestNew_ExtraTerms(t *testing.T) {
	f, err := New(Config{
		ExtraPromoTerms:    []string{"partner content"},
		ExtraTrackingHosts: []string{"metrics.example.net"},
	})
	require.NoError(t, err)

	rule, rejected := f.Reject(link(0, "Partner content: new laptops", "https://example.com/x"))
	assert.True(t, rejected)
	assert.Equal(t, RulePromotional, rule)

	rule, rejected = f.Reject(link(1, "Quarterly report", "https://metrics.example.net/r"))
	assert.True(t, rejected)
	assert.Equal(t, RuleTracking, rule)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{MinTextLen: 10, MaxTextLen: 5, MaxHrefLen: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_text_len")

	_, err = New(Config{ExtraPromoTerms: []string{"  "}})
	require.Error(t, err)
}
