// Package parser turns normalized markup into a queryable document tree.
package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed HTML document. The zero value and a nil *Document
// behave as an empty document.
type Document struct {
	doc *goquery.Document
}

// Parse parses markup into a Document.
func Parse(markup string) (*Document, error) {
	return FromReader(strings.NewReader(markup))
}

// FromReader parses an HTML stream into a Document.
func FromReader(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Root returns the document node, or nil for an empty Document.
func (d *Document) Root() *html.Node {
	if d == nil || d.doc == nil || len(d.doc.Nodes) == 0 {
		return nil
	}
	return d.doc.Nodes[0]
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	if d == nil || d.doc == nil {
		return &goquery.Selection{}
	}
	return d.doc.Find(selector)
}

// Body returns the <body> element, or an empty selection.
func (d *Document) Body() *goquery.Selection {
	return d.Find("body").First()
}

// Title returns the text of <title> with whitespace collapsed, or "".
func (d *Document) Title() string {
	root := d.Root()
	if root == nil {
		return ""
	}
	return strings.Join(strings.Fields(findTitle(root)), " ")
}

// ByID returns the first element with the given id. It walks the tree
// instead of building a selector, so ids that are not valid CSS identifiers
// (leading digits, dots, colons) still resolve.
func (d *Document) ByID(id string) *html.Node {
	var found *html.Node
	Walk(d.Root(), func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode {
			if v, ok := Attr(n, "id"); ok && v == id {
				found = n
				return false
			}
		}
		return true
	})
	return found
}

// Remove deletes every element matching selector and returns how many were
// removed.
func (d *Document) Remove(selector string) int {
	sel := d.Find(selector)
	n := sel.Length()
	sel.Remove()
	return n
}

// Clone returns a deep copy that shares no nodes with d.
func (d *Document) Clone() *Document {
	if d == nil || d.doc == nil {
		return nil
	}
	return &Document{doc: goquery.CloneDocument(d.doc)}
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	if d == nil || d.doc == nil {
		return "", nil
	}
	return d.doc.Html()
}

// OuterHTML serializes the first node of sel including its own tag.
func OuterHTML(sel *goquery.Selection) (string, error) {
	if sel == nil || sel.Length() == 0 {
		return "", nil
	}
	return goquery.OuterHtml(sel.First())
}

// RenderNode serializes a single node including its own tag.
func RenderNode(n *html.Node) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, n); err != nil {
		return "", fmt.Errorf("render node: %w", err)
	}
	return sb.String(), nil
}

// Attr reads an attribute of an element node.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr writes an attribute of an element node, adding it if missing.
func SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsElement reports whether n is an element with the given tag.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the node's children.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

// FirstDescendant returns the first element below n with the given tag.
func FirstDescendant(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, tag) {
			return c
		}
		if found := FirstDescendant(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// Contains reports whether descendant lies inside ancestor (or is it).
func Contains(ancestor, descendant *html.Node) bool {
	for n := descendant; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// TextContent returns the concatenated text below n, trimmed.
func TextContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	if n != nil {
		extract(n)
	}
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return TextContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
