package objectstore

import (
	"context"

	"github.com/dgallion1/docsplit/internal/doctree"
)

// StaticSource serves objects whose bodies and URLs are already attached,
// such as those posted to the transform endpoint.
type StaticSource struct {
	objects []doctree.SourceObject
}

func NewStaticSource(objs []doctree.SourceObject) *StaticSource {
	return &StaticSource{objects: objs}
}

func (s *StaticSource) List(_ context.Context) ([]doctree.SourceObject, error) {
	out := make([]doctree.SourceObject, len(s.objects))
	copy(out, s.objects)
	return out, nil
}

func (s *StaticSource) Load(_ context.Context, obj doctree.SourceObject) (doctree.SourceObject, error) {
	return obj, nil
}
