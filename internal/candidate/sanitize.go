package candidate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// "1.2M views", "340K subscribers", "12,431 watching"
	countPattern = regexp.MustCompile(`(?i)\b\d[\d.,]*\s*[kmb]?\s+(views?|subscribers?|watching|likes?|comments?)\b`)

	// "3 hours ago", "2 days ago", "Streamed 5 minutes ago"
	elapsedPattern = regexp.MustCompile(`(?i)\b(streamed\s+)?\d+\s+(seconds?|minutes?|hours?|days?|weeks?|months?|years?)\s+ago\b`)

	spacePattern = regexp.MustCompile(`\s+`)
)

// bullets are glyphs that page authors use as list decoration inside link text.
const bullets = "•·‣◦▪▫●○■□►▶➤→»«|"

// Label sanitises a raw element label for display and prompting: control
// characters and bullet glyphs are removed, view/subscriber counts and
// elapsed-time phrases are stripped, whitespace is collapsed and the result
// is truncated to MaxTextLen runes.
func Label(raw string) string {
	if raw == "" {
		return ""
	}
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		case strings.ContainsRune(bullets, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	s := countPattern.ReplaceAllString(b.String(), " ")
	s = elapsedPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
	return Truncate(s, MaxTextLen)
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n]))
}
