package sections

import (
	"strings"

	"github.com/dgallion1/docsplit/internal/parser"
	"golang.org/x/net/html"
)

// ResolveLinks returns a copy of doc in which every in-document anchor whose
// target lives in another depth-1 section points at that section's page,
// keeping the original fragment: href="#x" becomes "<ordinal>-<sectionID>#x".
// Anchors whose target is not found in another section are left alone.
// doc itself is not modified. The second result is the number of rewrites.
func ResolveLinks(doc *parser.Document) (*parser.Document, int) {
	out := doc.Clone()
	tops := TopLevel(out)
	if len(tops) == 0 {
		return out, 0
	}

	r := newResolver(tops)
	rewritten := 0
	for _, a := range out.Find("a[href]").Nodes {
		if r.rewrite(a) {
			rewritten++
		}
	}
	return out, rewritten
}

type resolver struct {
	tops   []*html.Node
	ordOf  map[*html.Node]int // depth-1 section -> 0-based position
	owners map[string][]int   // id -> depth-1 positions holding it, in order
	memo   map[string]string  // target id -> resolved page path
}

// newResolver indexes every id once per document.
func newResolver(tops []*html.Node) *resolver {
	r := &resolver{
		tops:   tops,
		ordOf:  make(map[*html.Node]int, len(tops)),
		owners: make(map[string][]int),
		memo:   make(map[string]string),
	}
	for i, top := range tops {
		r.ordOf[top] = i
		parser.Walk(top, func(n *html.Node) bool {
			if n.Type != html.ElementNode {
				return true
			}
			id, ok := parser.Attr(n, "id")
			if !ok || id == "" {
				return true
			}
			held := r.owners[id]
			if len(held) == 0 || held[len(held)-1] != i {
				r.owners[id] = append(held, i)
			}
			return true
		})
	}
	return r
}

func (r *resolver) rewrite(a *html.Node) bool {
	href, _ := parser.Attr(a, "href")
	if !strings.HasPrefix(href, "#") || len(href) == 1 {
		return false
	}
	target := href[1:]

	if page, ok := r.memo[target]; ok {
		parser.SetAttr(a, "href", page+href)
		return true
	}

	home := r.home(a)
	for _, i := range r.owners[target] {
		if i == home {
			continue
		}
		id, _ := parser.Attr(r.tops[i], "id")
		page := PagePath(i+1, id)
		r.memo[target] = page
		parser.SetAttr(a, "href", page+href)
		return true
	}
	return false
}

// home returns the position of the depth-1 section containing n, or -1.
func (r *resolver) home(n *html.Node) int {
	for p := n; p != nil; p = p.Parent {
		if i, ok := r.ordOf[p]; ok {
			return i
		}
	}
	return -1
}
