package sections

import (
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/keypath"
)

// IndexPath is the path of a sitemap root.
const IndexPath = "index.html"

// BuildSiteMap derives the sitemap of one document: a root titled by the
// document <title> (or key when there is none), one entry per depth-1
// section and, below each, one entry per nested section with a heading.
// versions is the version list registered for the document's basePath and
// may be nil.
func BuildSiteMap(title, key string, info keypath.PathInfo, nodes []*doctree.SectionNode, versions []doctree.VersionEntry) doctree.SiteMapEntry {
	if title == "" {
		title = key
	}
	root := doctree.SiteMapEntry{
		Level:       0,
		Path:        IndexPath,
		Title:       title,
		Subsections: make([]doctree.SiteMapSubEntry, 0, len(nodes)),
		BasePath:    info.BasePath,
		IsVersion:   info.IsVersion,
		Versions:    versions,
	}

	for i, node := range nodes {
		ordinal := i + 1
		entry := doctree.SiteMapEntry{
			ID:          node.ID,
			Level:       node.Level,
			Path:        PagePath(ordinal, node.ID),
			Title:       node.HeadingText,
			Subsections: []doctree.SiteMapSubEntry{},
		}
		for _, nav := range PageNav(ordinal, node) {
			entry.Subsections = append(entry.Subsections, doctree.SiteMapSubEntry{
				Section: doctree.SiteMapEntry{
					ID:          nav.ID,
					Level:       node.Level + 1,
					Path:        nav.Path,
					Title:       nav.Title,
					Subsections: []doctree.SiteMapSubEntry{},
				},
			})
		}
		root.Subsections = append(root.Subsections, doctree.SiteMapSubEntry{Section: entry})
	}
	return root
}
