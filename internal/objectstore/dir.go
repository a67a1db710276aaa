package objectstore

import (
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/keypath"
)

// DirSource treats a local directory as a bucket. Keys are slash-separated
// paths relative to Root.
type DirSource struct {
	Root         string
	Bucket       string
	Prefix       string
	MaxBodyBytes int64
}

// NewDirSource returns a source over root, named after the directory.
func NewDirSource(root, prefix string) *DirSource {
	return &DirSource{
		Root:         root,
		Bucket:       filepath.Base(filepath.Clean(root)),
		Prefix:       prefix,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// List walks Root and returns every regular file under Prefix, sorted by key.
func (d *DirSource) List(ctx context.Context) ([]doctree.SourceObject, error) {
	var objs []doctree.SourceObject
	err := filepath.WalkDir(d.Root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() || !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(d.Root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, d.Prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		etag, err := fileETag(p)
		if err != nil {
			return err
		}
		objs = append(objs, doctree.SourceObject{
			Bucket:       d.Bucket,
			Key:          key,
			LastModified: info.ModTime().UTC(),
			ETag:         etag,
			Size:         info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.Root, err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	return objs, nil
}

// Load sets a file:// URL and reads the body of HTML objects.
func (d *DirSource) Load(_ context.Context, obj doctree.SourceObject) (doctree.SourceObject, error) {
	p := filepath.Join(d.Root, filepath.FromSlash(obj.Key))
	abs, err := filepath.Abs(p)
	if err != nil {
		return obj, fmt.Errorf("resolve %s: %w", obj.Key, err)
	}
	obj.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()

	if !keypath.IsHTML(obj.Key) {
		return obj, nil
	}
	f, err := os.Open(p)
	if err != nil {
		return obj, fmt.Errorf("read %s: %w", obj.Key, err)
	}
	defer f.Close()
	limit := d.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	data, err := readBody(f, limit)
	if err != nil {
		return obj, fmt.Errorf("read %s: %w", obj.Key, err)
	}
	obj.Body = string(data)
	return obj, nil
}

// fileETag mimics the S3 ETag of a single-part upload: quoted MD5 hex.
func fileETag(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%q", fmt.Sprintf("%x", h.Sum(nil))), nil
}
