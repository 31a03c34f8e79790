package page

import (
	"net/url"
	"regexp"
	"strings"
)

// Type is the page family, used to prefer semantically relevant links.
type Type string

const (
	TypeGeneric Type = "generic"
	TypeSearch  Type = "search"
	TypeVideo   Type = "video"
	TypeWiki    Type = "wiki"
)

var (
	searchHosts = []string{"google.", "bing.com", "duckduckgo.com", "search.brave.com", "search.yahoo.com", "startpage.com", "kagi.com"}
	videoHosts  = []string{"youtube.com", "youtu.be", "vimeo.com", "dailymotion.com", "twitch.tv"}

	vimeoVideoPath = regexp.MustCompile(`^/\d+`)
)

// DetectType classifies a page by its URL.
func DetectType(u *url.URL) Type {
	if u == nil {
		return TypeGeneric
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case hostMatches(host, videoHosts):
		return TypeVideo
	case strings.HasSuffix(host, "wikipedia.org") || strings.HasPrefix(path, "/wiki/"):
		return TypeWiki
	case hostMatches(host, searchHosts) && (u.Query().Get("q") != "" || strings.HasPrefix(path, "/search")):
		return TypeSearch
	case strings.HasPrefix(path, "/search") && u.Query().Get("q") != "":
		return TypeSearch
	default:
		return TypeGeneric
	}
}

func hostMatches(host string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}

// isVideoHref reports whether u points at a single video.
func isVideoHref(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.Contains(host, "youtube.com"):
		return (u.Path == "/watch" && u.Query().Get("v") != "") || strings.HasPrefix(u.Path, "/shorts/")
	case host == "youtu.be":
		return len(u.Path) > 1
	case strings.Contains(host, "vimeo.com"):
		return vimeoVideoPath.MatchString(u.Path)
	default:
		return strings.HasPrefix(u.Path, "/watch") || strings.HasPrefix(u.Path, "/video/")
	}
}

// isArticleHref reports whether u points at an encyclopedia article rather
// than a namespace page such as Special: or Talk:.
func isArticleHref(u *url.URL) bool {
	if !strings.HasPrefix(u.Path, "/wiki/") {
		return false
	}
	title := strings.TrimPrefix(u.Path, "/wiki/")
	return title != "" && !strings.Contains(title, ":") && u.RawQuery == ""
}
