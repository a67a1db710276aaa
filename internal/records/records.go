// Package records turns source objects into the content records handed to
// the host content graph: one sitemap record and one page record per
// depth-1 section for HTML pages, one image record for image assets.
package records

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// Type is the host node type of a record.
type Type string

const (
	TypeObject  Type = "S3Object"
	TypeSitemap Type = "S3Sitemap"
	TypeImage   Type = "S3Image"
)

// SitemapKeySuffix is appended to the object key of sitemap records.
const SitemapKeySuffix = ".sitemap"

// Internal is the envelope the host uses for typing and change detection.
type Internal struct {
	Type          Type   `json:"type"`
	Content       string `json:"content"`
	ContentDigest string `json:"contentDigest"`
}

// Record is one emitted content unit. Fields not relevant to a record type
// are left empty.
type Record struct {
	// Identity is the distinguishing string the sink derives a stable node
	// id from.
	Identity string `json:"identity"`

	Bucket       string    `json:"Bucket"`
	Key          string    `json:"Key"`
	LastModified time.Time `json:"LastModified"`
	ETag         string    `json:"ETag"`
	Size         int64     `json:"Size"`
	URL          string    `json:"url,omitempty"`

	Slug      string `json:"slug,omitempty"`
	SectionID string `json:"sectionId,omitempty"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body,omitempty"`

	BasePath            string                `json:"basePath,omitempty"`
	BasePathWithVersion string                `json:"basePathWithVersion,omitempty"`
	VersionPath         string                `json:"versionPath"`
	Sitemap             *doctree.SiteMapEntry `json:"sitemap,omitempty"`
	PageNav             []doctree.NavEntry    `json:"pageNav,omitempty"`

	Internal Internal `json:"internal"`
}

// Sink receives records in emission order.
type Sink interface {
	Emit(ctx context.Context, rec Record) error
}

// Emit forwards recs to sink in order and stops at the first failure.
func Emit(ctx context.Context, sink Sink, recs []Record) (int, error) {
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := sink.Emit(ctx, rec); err != nil {
			return i, fmt.Errorf("emit %s %s: %w", rec.Internal.Type, rec.Identity, err)
		}
	}
	return len(recs), nil
}

// ObjectIdentity, SitemapIdentity and ImageIdentity build the identity
// strings the sink keys nodes by.
func ObjectIdentity(key, sectionID string) string { return "s3-object-" + key + "-" + sectionID }
func SitemapIdentity(key string) string { return "s3-sitemap-" + key }
func ImageIdentity(key string) string { return "s3-image-" + key }

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// ContentDigest derives the change-detection digest of a record from the
// object's stable metadata and the record payload. Unchanged input always
// yields the same digest.
func ContentDigest(meta doctree.Metadata, payload string) string {
	raw, _ := json.Marshal(meta)
	buf := make([]byte, 0, len(raw)+1+len(payload))
	buf = append(buf, raw...)
	buf = append(buf, '\n')
	buf = append(buf, payload...)
	return ContentHashHex(buf)
}

func metadataContent(meta doctree.Metadata) string {
	raw, _ := json.Marshal(meta)
	return string(raw)
}

func baseRecord(obj doctree.SourceObject) Record {
	return Record{
		Bucket:       obj.Bucket,
		Key:          obj.Key,
		LastModified: obj.LastModified,
		ETag:         obj.ETag,
		Size:         obj.Size,
		URL:          obj.URL,
	}
}
