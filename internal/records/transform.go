package records

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/keypath"
	"github.com/dgallion1/docsplit/internal/markup"
	"github.com/dgallion1/docsplit/internal/parser"
	"github.com/dgallion1/docsplit/internal/sections"
	"github.com/dgallion1/docsplit/internal/versions"
)

// Outcome classifies what Transform did with an object.
type Outcome string

const (
	OutcomePages       Outcome = "pages"
	OutcomeImage       Outcome = "image"
	OutcomeShallowKey  Outcome = "shallow_key"
	OutcomeUnsupported Outcome = "unsupported"
	OutcomeEmptyBody   Outcome = "empty_body"
	OutcomeNoSections  Outcome = "no_sections"
)

// Result is the output of transforming one object.
type Result struct {
	Records        []Record
	Outcome        Outcome
	Sections       int
	LinksRewritten int
}

// Transformer turns source objects into records. It holds no per-document
// state and is safe for concurrent use.
type Transformer struct {
	normalizer *markup.Normalizer
}

// NewTransformer returns a Transformer with the default sanitizer policy.
func NewTransformer() *Transformer {
	return &Transformer{normalizer: markup.New()}
}

// Transform converts one object. Objects that are not documentation pages
// or images, and pages without a body, produce no records and no error.
// A depth-1 section without an <h1> is an error naming the key.
func (t *Transformer) Transform(obj doctree.SourceObject, idx *versions.Index) (Result, error) {
	if out, skip := KeyOutcome(obj.Key); skip {
		return Result{Outcome: out}, nil
	}
	switch {
	case keypath.IsImage(obj.Key):
		return Result{Records: []Record{imageRecord(obj)}, Outcome: OutcomeImage}, nil
	case strings.TrimSpace(obj.Body) == "":
		return Result{Outcome: OutcomeEmptyBody}, nil
	}
	return t.transformPage(obj, idx)
}

// KeyOutcome reports whether key is skipped on its name alone, before any
// body is fetched, and the outcome Transform gives it.
func KeyOutcome(key string) (Outcome, bool) {
	switch {
	case !keypath.IsDocumentKey(key):
		return OutcomeShallowKey, true
	case keypath.IsImage(key):
		return OutcomeImage, false
	case !keypath.IsHTML(key):
		return OutcomeUnsupported, true
	}
	return OutcomePages, false
}

func (t *Transformer) transformPage(obj doctree.SourceObject, idx *versions.Index) (Result, error) {
	info := keypath.Classify(obj.Key)

	doc, err := parser.Parse(t.normalizer.Normalize(obj.Body))
	if err != nil {
		return Result{}, fmt.Errorf("object %s: %w", obj.Key, err)
	}
	sections.StripHeaderLinks(doc)

	resolved, rewritten := sections.ResolveLinks(doc)
	nodes, err := sections.Split(resolved)
	if err != nil {
		return Result{}, fmt.Errorf("object %s: %w", obj.Key, err)
	}
	if len(nodes) == 0 {
		return Result{Outcome: OutcomeNoSections, LinksRewritten: rewritten}, nil
	}

	sitemap := sections.BuildSiteMap(resolved.Title(), obj.Key, info, nodes, idx.Lookup(info.BasePath))
	meta := obj.Metadata()
	content := metadataContent(meta)

	recs := make([]Record, 0, len(nodes)+1)

	smJSON, err := json.Marshal(sitemap)
	if err != nil {
		return Result{}, fmt.Errorf("object %s: marshal sitemap: %w", obj.Key, err)
	}
	sm := baseRecord(obj)
	sm.Identity = SitemapIdentity(obj.Key)
	sm.Key = obj.Key + SitemapKeySuffix
	sm.BasePath = info.BasePath
	sm.BasePathWithVersion = info.BasePathWithVersion
	sm.VersionPath = info.VersionPath
	sm.Sitemap = &sitemap
	sm.Internal = Internal{
		Type:          TypeSitemap,
		Content:       content,
		ContentDigest: ContentDigest(meta, string(smJSON)),
	}
	recs = append(recs, sm)

	for i, node := range nodes {
		ordinal := i + 1
		page := baseRecord(obj)
		page.Identity = ObjectIdentity(obj.Key, node.ID)
		page.Slug = info.BasePathWithVersion + "/" + sections.PagePath(ordinal, node.ID)
		page.SectionID = node.ID
		page.Title = node.HeadingText
		page.Body = node.InnerMarkup
		page.BasePath = info.BasePath
		page.BasePathWithVersion = info.BasePathWithVersion
		page.VersionPath = info.VersionPath
		page.Sitemap = &sitemap
		page.PageNav = sections.PageNav(ordinal, node)
		page.Internal = Internal{
			Type:          TypeObject,
			Content:       content,
			ContentDigest: ContentDigest(meta, node.InnerMarkup),
		}
		recs = append(recs, page)
	}

	return Result{
		Records:        recs,
		Outcome:        OutcomePages,
		Sections:       len(nodes),
		LinksRewritten: rewritten,
	}, nil
}

func imageRecord(obj doctree.SourceObject) Record {
	meta := obj.Metadata()
	rec := baseRecord(obj)
	rec.Identity = ImageIdentity(obj.Key)
	rec.Internal = Internal{
		Type:          TypeImage,
		Content:       metadataContent(meta),
		ContentDigest: ContentDigest(meta, ""),
	}
	return rec
}
