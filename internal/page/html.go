package page

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/fyrsmithlabs/linkrank/internal/candidate"
	"github.com/fyrsmithlabs/linkrank/internal/scorer"
)

// Layout estimate used when no renderer supplies geometry.
const (
	lineHeight    = 24.0
	headingHeight = 40.0
	charWidth     = 8.0
	headingChar   = 14.0
	navCenterX    = 120.0
)

// Viewport is the assumed display area in CSS pixels.
type Viewport struct {
	Width  float64
	Height float64
}

// DefaultViewport is a common laptop viewport.
var DefaultViewport = Viewport{Width: 1280, Height: 720}

// HTMLExtractor extracts candidates from an HTML document. It estimates
// layout from document order since no renderer is available.
type HTMLExtractor struct {
	maxCandidates int
	viewport      Viewport
	thresholds    scorer.Thresholds
}

// HTMLOption configures an HTMLExtractor.
type HTMLOption func(*HTMLExtractor)

// WithMaxCandidates bounds the number of candidates returned.
func WithMaxCandidates(n int) HTMLOption {
	return func(e *HTMLExtractor) {
		if n > 0 {
			e.maxCandidates = n
		}
	}
}

// WithViewport sets the assumed viewport.
func WithViewport(v Viewport) HTMLOption {
	return func(e *HTMLExtractor) {
		if v.Width > 0 && v.Height > 0 {
			e.viewport = v
		}
	}
}

// WithThresholds sets the reference values used for geometry terms.
func WithThresholds(t scorer.Thresholds) HTMLOption {
	return func(e *HTMLExtractor) { e.thresholds = t }
}

// NewHTMLExtractor creates an extractor.
func NewHTMLExtractor(opts ...HTMLOption) *HTMLExtractor {
	e := &HTMLExtractor{
		maxCandidates: DefaultMaxCandidates,
		viewport:      DefaultViewport,
		thresholds:    scorer.DefaultConfig().Thresholds,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Candidates implements Collaborator.
func (e *HTMLExtractor) Candidates(ctx context.Context, h Handle) ([]candidate.Candidate, error) {
	if len(h.Content) == 0 {
		return nil, ErrNoContent
	}
	doc, err := html.Parse(bytes.NewReader(h.Content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, _ := url.Parse(h.URL)
	if href := findBaseHref(doc); href != "" {
		if b, err := resolve(base, href); err == nil {
			base = b
		}
	}

	w := &walker{
		e:        e,
		base:     base,
		pageType: DetectType(base),
		seen:     make(map[string]bool),
	}
	if base != nil {
		w.self = stripFragment(*base)
	}
	w.walk(doc, region{})

	out := prefer(w.out, w.pageType)
	return finish(out, e.maxCandidates), nil
}

// region is the inherited page context of a node.
type region struct {
	nav, main, heading, results bool
}

type walker struct {
	e        *HTMLExtractor
	base     *url.URL
	self     string
	pageType Type
	cursor   float64
	seen     map[string]bool
	out      []candidate.Candidate
}

var skipTags = map[string]bool{
	"head": true, "script": true, "style": true, "noscript": true,
	"template": true, "svg": true, "iframe": true, "select": true,
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "tr": true, "section": true,
	"article": true, "header": true, "footer": true, "nav": true,
	"ul": true, "ol": true, "table": true, "br": true, "dd": true,
	"dt": true, "blockquote": true, "figure": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (w *walker) walk(n *html.Node, r region) {
	if n.Type == html.ElementNode {
		if skipTags[n.Data] || hidden(n) {
			return
		}
		r = classify(n, r, w.pageType)
		if blockTags[n.Data] {
			if r.heading && isHeading(n.Data) {
				w.cursor += headingHeight
			} else {
				w.cursor += lineHeight
			}
		}
		if n.Data == "a" {
			w.anchor(n, r)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, r)
	}
}

func (w *walker) anchor(n *html.Node, r region) {
	raw := strings.TrimSpace(attr(n, "href"))
	if raw == "" || strings.HasPrefix(raw, "#") {
		return
	}
	lower := strings.ToLower(raw)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return
		}
	}

	u, err := resolve(w.base, raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return
	}
	if strings.Contains(u.RawQuery, "action=edit") {
		return
	}
	href := stripFragment(*u)
	if href == w.self || w.seen[href] {
		return
	}
	w.seen[href] = true

	label := candidate.Label(textContent(n))
	if label == "" {
		label = candidate.Label(firstNonEmpty(attr(n, "aria-label"), attr(n, "title"), imgAlt(n)))
	}
	if label == "" {
		return
	}

	heading := r.heading || containsTag(n, "h1", "h2", "h3")
	ctx := candidate.LinkContext{
		Surrounding:  surrounding(n, label),
		InHeading:    heading,
		InNav:        r.nav,
		InMain:       r.main,
		SearchResult: w.pageType == TypeSearch && (r.results || containsTag(n, "h3")),
		VideoLink:    isVideoHref(u),
		WikiLink:     w.pageType == TypeWiki && isArticleHref(u) && sameHost(u, w.base),
		Position:     w.position(label, href, heading, r.nav),
	}

	w.out = append(w.out, candidate.Candidate{
		ID:      len(w.out),
		Text:    label,
		Href:    href,
		Context: ctx,
	})
}

func (w *walker) position(label, href string, heading, nav bool) candidate.Position {
	vp := w.e.viewport
	t := w.e.thresholds

	perChar, height := charWidth, lineHeight
	if heading {
		perChar, height = headingChar, headingHeight
	}
	width := float64(utf8.RuneCountInString(label)) * perChar
	if width > vp.Width*0.9 {
		width = vp.Width * 0.9
	}

	centerX := vp.Width / 2
	if nav {
		centerX = navCenterX
	}
	offset := w.cursor

	return candidate.Position{
		VerticalOffset: offset,
		Visible:        offset < vp.Height,
		Width:          width,
		Height:         height,
		CenterScore:    scorer.CenterProximity(centerX, offset+height/2, vp.Width, vp.Height),
		AreaScore:      scorer.AreaFit(width, height, t.OptimalAreaMin, t.OptimalAreaMax),
		URLScore:       scorer.URLBrevity(href, t.URLCeiling),
	}
}

// prefer moves the page-type-relevant links ahead of generic ones, keeping
// document order within each group.
func prefer(in []candidate.Candidate, t Type) []candidate.Candidate {
	rank := func(c candidate.Candidate) int {
		switch {
		case t == TypeSearch && c.Context.SearchResult:
			return 0
		case t == TypeVideo && c.Context.VideoLink:
			return 0
		case t == TypeWiki && c.Context.WikiLink && c.Context.InMain:
			return 0
		case t == TypeWiki && c.Context.InNav:
			return 2
		default:
			return 1
		}
	}
	out := candidate.Clone(in)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

func classify(n *html.Node, r region, t Type) region {
	id := strings.ToLower(attr(n, "id"))
	class := strings.ToLower(attr(n, "class"))
	role := strings.ToLower(attr(n, "role"))

	switch n.Data {
	case "nav", "header", "footer", "aside":
		r.nav = true
	case "main", "article":
		r.main = true
	}
	if isHeading(n.Data) {
		r.heading = true
	}

	switch role {
	case "navigation", "banner", "contentinfo", "menu", "menubar":
		r.nav = true
	case "main":
		r.main = true
	case "heading":
		r.heading = true
	}

	for _, k := range []string{"nav", "menu", "breadcrumb", "sidebar", "footer", "masthead"} {
		if strings.Contains(id, k) || containsClass(class, k) {
			r.nav = true
		}
	}
	switch id {
	case "main", "content", "main-content", "maincontent", "mw-content-text", "bodycontent":
		r.main = true
	}
	if containsClass(class, "mw-parser-output") {
		r.main = true
	}

	if t == TypeSearch {
		if id == "search" || id == "results" || id == "rso" || containsClass(class, "result") {
			r.results = true
		}
	}
	return r
}

// containsClass reports whether any class token contains k.
func containsClass(class, k string) bool {
	for _, tok := range strings.Fields(class) {
		if strings.Contains(tok, k) {
			return true
		}
	}
	return false
}

func isHeading(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func hidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(a.Val, "true") {
				return true
			}
		case "style":
			s := strings.ReplaceAll(strings.ToLower(a.Val), " ", "")
			if strings.Contains(s, "display:none") || strings.Contains(s, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if skipTags[n.Data] || hidden(n) {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func imgAlt(n *html.Node) string {
	var alt string
	var f func(*html.Node) bool
	f = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "img" {
			if a := strings.TrimSpace(attr(n, "alt")); a != "" {
				alt = a
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if f(c) {
				return true
			}
		}
		return false
	}
	f(n)
	return alt
}

func containsTag(n *html.Node, tags ...string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for _, t := range tags {
				if c.Data == t {
					return true
				}
			}
			if containsTag(c, tags...) {
				return true
			}
		}
	}
	return false
}

var contextTags = map[string]bool{
	"p": true, "li": true, "td": true, "dd": true, "blockquote": true,
	"figcaption": true, "article": true, "section": true, "div": true,
}

// surrounding is the sanitised text of the nearest block ancestor, or "" if
// it adds nothing beyond the label.
func surrounding(n *html.Node, label string) string {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode || !contextTags[p.Data] {
			continue
		}
		text := candidate.Label(textContent(p))
		if text == "" || text == label {
			return ""
		}
		return candidate.Truncate(text, candidate.MaxSurroundingLen)
	}
	return ""
}

func findBaseHref(doc *html.Node) string {
	var href string
	var f func(*html.Node) bool
	f = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "base" {
			href = attr(n, "href")
			return true
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if f(c) {
				return true
			}
		}
		return false
	}
	f(doc)
	return href
}

func resolve(base *url.URL, ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return u, nil
	}
	return base.ResolveReference(u), nil
}

func stripFragment(u url.URL) string {
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func sameHost(u, base *url.URL) bool {
	return base != nil && strings.EqualFold(u.Hostname(), base.Hostname())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
