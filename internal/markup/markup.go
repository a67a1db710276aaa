// Package markup repairs and sanitizes raw documentation markup before it is
// parsed.
package markup

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// svgImage matches the markdown image escape some generators leave behind
// for inline SVG diagrams.
var svgImage = regexp.MustCompile(`!\[([^\]]*)\]\((data:image/svg\+xml;base64,[A-Za-z0-9+/=]+)\)`)

var (
	htmlTag    = regexp.MustCompile(`(?i)<html[\s>]`)
	doctype    = regexp.MustCompile(`(?i)^\s*<!DOCTYPE\s+html\s*>`)
	closeHTML  = regexp.MustCompile(`(?i)</html\s*>`)
	imageData  = regexp.MustCompile(`^image/(gif|jpeg|png|svg\+xml|webp|tiff);base64,`)
	linkURL    = regexp.MustCompile(`^(?:(?i:https?|ftp|mailto|tel):|[^:/?#]*(?:[/?#]|$))`)
	imageURL   = regexp.MustCompile(`^(?:(?i:https?|data):|[^:/?#]*(?:[/?#]|$))`)
	mediaURL   = regexp.MustCompile(`^(?:(?i:https?):|[^:/?#]*(?:[/?#]|$))`)
	allowedEls = []string{
		// document structure
		"html", "head", "title", "body", "section", "article", "aside", "nav",
		"header", "footer", "main", "div", "span", "p", "br", "hr",
		"blockquote", "pre", "address", "details", "summary",
		// headings
		"h1", "h2", "h3", "h4", "h5", "h6",
		// inline
		"a", "b", "i", "em", "strong", "code", "kbd", "samp", "var", "sub",
		"sup", "small", "mark", "abbr", "cite", "q", "s", "u", "del", "ins",
		"dfn", "time", "wbr",
		// lists
		"ul", "ol", "li", "dl", "dt", "dd",
		// tables
		"table", "caption", "colgroup", "col", "thead", "tbody", "tfoot",
		"tr", "th", "td",
		// media
		"img", "figure", "figcaption", "picture", "source", "video", "audio",
	}
)

// Policy returns the sanitizer policy applied to every document.
func Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(allowedEls...)
	p.AllowNoAttrs().OnElements(allowedEls...)
	p.SkipElementsContent("script", "style")

	p.AllowAttrs("id", "class", "title", "lang", "dir").Globally()
	p.AllowAttrs("href").Matching(linkURL).OnElements("a")
	p.AllowAttrs("name", "target", "rel").OnElements("a")
	p.AllowAttrs("src").Matching(imageURL).OnElements("img")
	p.AllowAttrs("alt", "width", "height", "loading").OnElements("img")
	p.AllowAttrs("src").Matching(mediaURL).OnElements("source", "video", "audio")
	p.AllowAttrs("poster").Matching(mediaURL).OnElements("video")
	p.AllowAttrs("type", "media").OnElements("source")
	p.AllowAttrs("controls", "width", "height").OnElements("video", "audio")
	p.AllowAttrs("colspan", "rowspan", "headers").OnElements("td", "th")
	p.AllowAttrs("scope").OnElements("th")
	p.AllowAttrs("span").OnElements("col", "colgroup")
	p.AllowAttrs("start", "reversed", "type").OnElements("ol")
	p.AllowAttrs("value").OnElements("li")
	p.AllowAttrs("datetime").OnElements("time", "del", "ins")
	p.AllowAttrs("cite").Matching(mediaURL).OnElements("blockquote", "q", "del", "ins")

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "ftp", "mailto", "tel")
	// data: is only reachable through img src, see imageURL.
	p.AllowURLSchemeWithCustomPolicy("data", func(u *url.URL) bool {
		if u.RawQuery != "" || u.Fragment != "" {
			return false
		}
		return imageData.MatchString(u.Opaque)
	})

	return p
}

// Normalizer rewrites, sanitizes and repairs raw markup. It is safe for
// concurrent use.
type Normalizer struct {
	policy *bluemonday.Policy
}

// New returns a Normalizer using Policy().
func New() *Normalizer {
	return &Normalizer{policy: Policy()}
}

// Normalize applies, in order: the SVG image rewrite, sanitization and
// root repair. The result always has an <html> root.
func (n *Normalizer) Normalize(raw string) string {
	s := RewriteSVGImages(raw)
	s = n.policy.Sanitize(s)
	return EnsureRoot(s)
}

// RewriteSVGImages turns ![alt](data:image/svg+xml;base64,...) into an <img>.
func RewriteSVGImages(s string) string {
	return svgImage.ReplaceAllString(s, `<img src="$2" alt="$1">`)
}

// EnsureRoot makes sure the markup has an <html> element.
func EnsureRoot(s string) string {
	if htmlTag.MatchString(s) {
		return s
	}
	if loc := doctype.FindStringIndex(s); loc != nil {
		out := s[:loc[1]] + "<html>" + s[loc[1]:]
		if !closeHTML.MatchString(out) {
			out += "</html>"
		}
		return out
	}
	s = closeHTML.ReplaceAllString(s, "")
	return "<html>" + strings.TrimSpace(s) + "</html>"
}
