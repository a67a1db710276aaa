// Package sections splits parsed documentation pages into per-section pages,
// rewrites cross-section anchors and derives the document sitemap.
package sections

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/parser"
	"golang.org/x/net/html"
)

// HeaderLinkSelector matches the permalink anchors Sphinx appends to headings.
const HeaderLinkSelector = "a.headerlink"

// ErrMissingHeading is returned when a depth-1 section has no <h1>.
var ErrMissingHeading = errors.New("section has no h1 heading")

// MissingHeadingError reports which section broke the heading convention.
type MissingHeadingError struct {
	SectionID string
	Ordinal   int // 1-based position among depth-1 sections
}

func (e *MissingHeadingError) Error() string {
	return fmt.Sprintf("section %d (id %q): %s", e.Ordinal, e.SectionID, ErrMissingHeading)
}

func (e *MissingHeadingError) Unwrap() error { return ErrMissingHeading }

// PagePath is the page name of the depth-1 section at ordinal (1-based).
func PagePath(ordinal int, sectionID string) string {
	return fmt.Sprintf("%d-%s", ordinal, sectionID)
}

// StripHeaderLinks removes generator permalink anchors and returns how many
// were removed.
func StripHeaderLinks(doc *parser.Document) int {
	return doc.Remove(HeaderLinkSelector)
}

// TopLevel returns the <section> elements that are direct children of
// <body>, in document order.
func TopLevel(doc *parser.Document) []*html.Node {
	body := doc.Body()
	if body.Length() == 0 {
		return nil
	}
	var out []*html.Node
	for c := body.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if parser.IsElement(c, "section") {
			out = append(out, c)
		}
	}
	return out
}

// Split strips header links and returns one SectionNode per depth-1
// section. Nested sections stay inside their parent's markup and are
// recorded as children for navigation. A document without depth-1 sections
// yields an empty slice.
func Split(doc *parser.Document) ([]*doctree.SectionNode, error) {
	StripHeaderLinks(doc)

	tops := TopLevel(doc)
	nodes := make([]*doctree.SectionNode, 0, len(tops))
	for i, top := range tops {
		node, err := buildNode(top, 1)
		if err != nil {
			return nil, err
		}
		if node.HeadingText == "" {
			return nil, &MissingHeadingError{SectionID: node.ID, Ordinal: i + 1}
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func buildNode(n *html.Node, level int) (*doctree.SectionNode, error) {
	id, _ := parser.Attr(n, "id")
	markup, err := parser.RenderNode(n)
	if err != nil {
		return nil, fmt.Errorf("section %q: %w", id, err)
	}

	node := &doctree.SectionNode{
		ID:          id,
		Level:       level,
		InnerMarkup: markup,
	}
	if h := parser.FirstDescendant(n, headingTag(level)); h != nil {
		node.HeadingText = parser.TextContent(h)
	}

	for _, child := range nestedSections(n) {
		cn, err := buildNode(child, level+1)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, cn)
	}
	return node, nil
}

// nestedSections returns the <section> descendants of n that have no other
// <section> between them and n.
func nestedSections(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		parser.Walk(c, func(d *html.Node) bool {
			if parser.IsElement(d, "section") {
				out = append(out, d)
				return false
			}
			return true
		})
	}
	return out
}

func headingTag(level int) string {
	if level > 6 {
		level = 6
	}
	return fmt.Sprintf("h%d", level)
}

// PageNav lists the in-page jump targets of the depth-1 node at ordinal:
// its nested sections that carry a heading.
func PageNav(ordinal int, node *doctree.SectionNode) []doctree.NavEntry {
	nav := make([]doctree.NavEntry, 0, len(node.Children))
	for _, child := range node.Children {
		if child.HeadingText == "" {
			continue
		}
		nav = append(nav, doctree.NavEntry{
			ID:    child.ID,
			Title: child.HeadingText,
			Path:  PagePath(ordinal, node.ID) + "#" + child.ID,
		})
	}
	return nav
}
