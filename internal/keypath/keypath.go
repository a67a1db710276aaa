// Package keypath classifies blob-store object keys into logical document
// paths and version variants.
package keypath

import (
	"path"
	"strings"
)

// Environments lists the key prefixes that discriminate deployment
// environments. They never appear in a logical path.
var Environments = []string{"production", "preview", "development"}

// VersionsSegment marks a version variant: .../versions/<name>/...
const VersionsSegment = "versions"

// PathInfo is the routing information derived from an object key.
type PathInfo struct {
	BasePath            string `json:"basePath" yaml:"basePath"`
	BasePathWithVersion string `json:"basePathWithVersion" yaml:"basePathWithVersion"`
	VersionPath         string `json:"versionPath" yaml:"versionPath"`
	IsVersion           bool   `json:"isVersion" yaml:"isVersion"`
	VersionName         string `json:"versionName,omitempty" yaml:"versionName,omitempty"`
}

var htmlExtensions = map[string]bool{
	".htm":  true,
	".html": true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// Classify derives PathInfo from an object key. It is pure and never fails;
// keys that are not documentation pages are filtered by the caller.
func Classify(key string) PathInfo {
	segs := logicalSegments(key)

	// A single-segment path keeps its filename.
	dir := segs
	if len(segs) > 1 {
		dir = segs[:len(segs)-1]
	}

	i := versionIndex(dir)
	if i < 0 {
		p := joinSegments(dir)
		return PathInfo{BasePath: p, BasePathWithVersion: p}
	}

	name := dir[i+1]
	base := make([]string, 0, len(dir)-2)
	base = append(base, dir[:i]...)
	base = append(base, dir[i+2:]...)

	withVersion := make([]string, 0, len(dir)-1)
	withVersion = append(withVersion, dir[:i]...)
	withVersion = append(withVersion, dir[i+1:]...)

	return PathInfo{
		BasePath:            joinSegments(base),
		BasePathWithVersion: joinSegments(withVersion),
		VersionPath:         "/" + name,
		IsVersion:           true,
		VersionName:         name,
	}
}

// LogicalPath returns the key with its environment prefix replaced by a
// leading slash: production/docs/a.html -> /docs/a.html.
func LogicalPath(key string) string {
	return joinSegments(logicalSegments(key))
}

// SeparatorCount returns the number of path separators in key.
func SeparatorCount(key string) int {
	return strings.Count(key, "/")
}

// IsDocumentKey reports whether key is deep enough to be a documentation
// object. Keys with zero or one separator are not.
func IsDocumentKey(key string) bool {
	return SeparatorCount(key) > 1
}

// IsHTML reports whether key names an HTML page.
func IsHTML(key string) bool {
	return htmlExtensions[strings.ToLower(path.Ext(key))]
}

// IsImage reports whether key names an image asset.
func IsImage(key string) bool {
	return imageExtensions[strings.ToLower(path.Ext(key))]
}

// logicalSegments splits key into non-empty segments and drops a leading
// environment discriminator.
func logicalSegments(key string) []string {
	raw := strings.Split(key, "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) > 0 && isEnvironment(segs[0]) {
		segs = segs[1:]
	}
	return segs
}

func isEnvironment(seg string) bool {
	for _, env := range Environments {
		if seg == env {
			return true
		}
	}
	return false
}

// versionIndex returns the position of the first "versions" segment that is
// followed by a version name, or -1.
func versionIndex(dir []string) int {
	for i := 0; i+1 < len(dir); i++ {
		if dir[i] == VersionsSegment {
			return i
		}
	}
	return -1
}

func joinSegments(segs []string) string {
	if len(segs) == 0 {
		return ""
	}
	return "/" + strings.Join(segs, "/")
}
