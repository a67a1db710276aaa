// Package versions builds the per-run registry of document versions.
package versions

import (
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/keypath"
)

// Latest is the entry every versioned base path starts with.
var Latest = doctree.VersionEntry{Path: "", Title: "latest"}

// Index maps a basePath to its ordered version entries: latest first, then
// versions in the order they were discovered. An Index is built once and is
// read-only afterwards, so concurrent lookups are safe.
type Index struct {
	entries map[string][]doctree.VersionEntry
	order   []string
}

// Build scans objects once and registers every HTML version variant.
func Build(objects []doctree.SourceObject) *Index {
	idx := &Index{entries: make(map[string][]doctree.VersionEntry)}
	for _, obj := range objects {
		if !keypath.IsDocumentKey(obj.Key) || !keypath.IsHTML(obj.Key) {
			continue
		}
		info := keypath.Classify(obj.Key)
		if !info.IsVersion {
			continue
		}
		idx.register(info.BasePath, doctree.VersionEntry{
			Path:  info.VersionPath,
			Title: info.VersionName,
		})
	}
	return idx
}

func (idx *Index) register(basePath string, entry doctree.VersionEntry) {
	list, ok := idx.entries[basePath]
	if !ok {
		list = []doctree.VersionEntry{Latest}
		idx.order = append(idx.order, basePath)
	}
	// A version directory holds many pages; register it once.
	for _, e := range list {
		if e.Path == entry.Path {
			return
		}
	}
	idx.entries[basePath] = append(list, entry)
}

// Lookup returns a copy of the versions registered for basePath, or nil.
func (idx *Index) Lookup(basePath string) []doctree.VersionEntry {
	if idx == nil {
		return nil
	}
	list, ok := idx.entries[basePath]
	if !ok {
		return nil
	}
	out := make([]doctree.VersionEntry, len(list))
	copy(out, list)
	return out
}

// BasePaths returns the registered base paths in first-registration order.
func (idx *Index) BasePaths() []string {
	if idx == nil {
		return nil
	}
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Len returns the number of versioned base paths.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.order)
}

// Snapshot returns the whole index as a plain map, for display.
func (idx *Index) Snapshot() map[string][]doctree.VersionEntry {
	out := make(map[string][]doctree.VersionEntry, idx.Len())
	for _, bp := range idx.BasePaths() {
		out[bp] = idx.Lookup(bp)
	}
	return out
}
