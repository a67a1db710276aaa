package doctree

import "time"

// SourceObject is one blob-store object as listed by the object source.
// Body and URL are attached by the source before the transform pass.
type SourceObject struct {
	Bucket       string    `json:"Bucket"`
	Key          string    `json:"Key"`
	LastModified time.Time `json:"LastModified"`
	ETag         string    `json:"ETag"`
	Size         int64     `json:"Size"`
	URL          string    `json:"url,omitempty"`
	Body         string    `json:"body,omitempty"`
}

// Metadata is the stable, body-free part of a SourceObject.
type Metadata struct {
	Bucket       string    `json:"Bucket"`
	Key          string    `json:"Key"`
	LastModified time.Time `json:"LastModified"`
	ETag         string    `json:"ETag"`
	Size         int64     `json:"Size"`
}

// Metadata returns the object's stable metadata.
func (o SourceObject) Metadata() Metadata {
	return Metadata{
		Bucket:       o.Bucket,
		Key:          o.Key,
		LastModified: o.LastModified,
		ETag:         o.ETag,
		Size:         o.Size,
	}
}

// VersionEntry identifies one snapshot of a document. Path "" is latest.
type VersionEntry struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// SectionNode is a <section> element of a parsed document. Only depth-1
// nodes become pages; deeper nodes feed navigation.
type SectionNode struct {
	ID          string         // id attribute of the <section>
	HeadingText string         // h1 for depth 1, h2 for depth 2, ...
	Level       int            // 1 for direct children of <body>
	InnerMarkup string         // outer HTML of the section, nested sections included
	Children    []*SectionNode // nested sections in document order
}

// SiteMapEntry is a node of a document sitemap.
type SiteMapEntry struct {
	ID          string            `json:"id"`
	Level       int               `json:"level"`
	Path        string            `json:"path"`
	Title       string            `json:"title"`
	Subsections []SiteMapSubEntry `json:"subsections"`

	// Set on the root entry only.
	BasePath  string         `json:"basePath,omitempty"`
	IsVersion bool           `json:"isVersion"`
	Versions  []VersionEntry `json:"versions,omitempty"`
}

// SiteMapSubEntry wraps a child entry; the host schema nests children
// under a "section" field.
type SiteMapSubEntry struct {
	Section SiteMapEntry `json:"section"`
}

// NavEntry is one in-page jump target of a page.
type NavEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}
