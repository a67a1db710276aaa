package records

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/sections"
	"github.com/dgallion1/docsplit/internal/versions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func object(key, body string) doctree.SourceObject {
	return doctree.SourceObject{
		Bucket:       "docs-test",
		Key:          key,
		LastModified: time.Date(2024, 11, 13, 15, 45, 36, 0, time.UTC),
		ETag:         `"aae5464e2472f123971016697b6686d9"`,
		Size:         2398,
		URL:          "https://docs.example.com/test-1",
		Body:         body,
	}
}

func transform(t *testing.T, objs ...doctree.SourceObject) []Record {
	t.Helper()
	idx := versions.Build(objs)
	tr := NewTransformer()
	var out []Record
	for _, obj := range objs {
		res, err := tr.Transform(obj, idx)
		require.NoError(t, err)
		out = append(out, res.Records...)
	}
	return out
}

func TestTransform_OneSection(t *testing.T) {
	recs := transform(t, object("production/rst-examples/index.html",
		`<html><body><section id='headline-1'><h1>headline</h1><div>Lorem Ipsum</div></section></body></html>`))
	require.Len(t, recs, 2)

	sm, page := recs[0], recs[1]
	assert.Equal(t, TypeSitemap, sm.Internal.Type)
	assert.Equal(t, "production/rst-examples/index.html.sitemap", sm.Key)
	assert.Equal(t, "/rst-examples", sm.BasePath)
	assert.Equal(t, "/rst-examples", sm.BasePathWithVersion)
	assert.Equal(t, "", sm.VersionPath)
	require.NotNil(t, sm.Sitemap)
	assert.Equal(t, "/rst-examples", sm.Sitemap.BasePath)
	assert.False(t, sm.Sitemap.IsVersion)
	assert.Equal(t, "production/rst-examples/index.html", sm.Sitemap.Title)
	require.Len(t, sm.Sitemap.Subsections, 1)
	assert.Equal(t, "headline", sm.Sitemap.Subsections[0].Section.Title)
	assert.Equal(t, "1-headline-1", sm.Sitemap.Subsections[0].Section.Path)
	assert.Equal(t, "s3-sitemap-production/rst-examples/index.html", sm.Identity)

	assert.Equal(t, TypeObject, page.Internal.Type)
	assert.Equal(t, "production/rst-examples/index.html", page.Key)
	assert.Equal(t, "headline", page.Title)
	assert.Equal(t, `<section id="headline-1"><h1>headline</h1><div>Lorem Ipsum</div></section>`, page.Body)
	assert.Equal(t, "/rst-examples/1-headline-1", page.Slug)
	assert.Equal(t, "s3-object-production/rst-examples/index.html-headline-1", page.Identity)
	assert.Empty(t, page.PageNav)
}

func TestTransform_DoctypeWithoutHTMLTag(t *testing.T) {
	recs := transform(t, object("production/rst-examples/index.html",
		`<!DOCTYPE html><head><title>documentation title</title></head><body><section id='headline-1'><h1>headline</h1><div>Lorem Ipsum</div></section></body></html>`))
	require.Len(t, recs, 2)
	assert.Equal(t, "documentation title", recs[0].Sitemap.Title)
	assert.Equal(t, `<section id="headline-1"><h1>headline</h1><div>Lorem Ipsum</div></section>`, recs[1].Body)
}

func TestTransform_BareFragment(t *testing.T) {
	recs := transform(t, object("production/rst-examples/index.html",
		`<section id="a"><h1>A</h1></section><section id="b"><h1>B</h1></section>`))
	require.Len(t, recs, 3)
	assert.Equal(t, "A", recs[1].Title)
	assert.Equal(t, "B", recs[2].Title)
}

func TestTransform_MultipleSections(t *testing.T) {
	body := `<html><head><title>documentation title</title></head><body>` +
		`<section id='headline-1'><h1>headline</h1><div>Lorem Ipsum</div><a href="#headline3">next</a>` +
		`<section id='headline2'><h2>subheadline</h2>test</section></section>` +
		`<section id='headline3'><h1>headline3</h1><div>lorem ipsum 2</div></section>` +
		`<section id='headline4'><h1>headline 4</h1><div>lorem ipsum 3</div></section>` +
		`</body></html>`
	recs := transform(t, object("production/rst-examples/index.html", body))
	require.Len(t, recs, 4)

	sm := recs[0]
	assert.Equal(t, "documentation title", sm.Sitemap.Title)
	require.Len(t, sm.Sitemap.Subsections, 3)

	assert.Equal(t, `<section id="headline-1"><h1>headline</h1><div>Lorem Ipsum</div><a href="2-headline3#headline3">next</a><section id="headline2"><h2>subheadline</h2>test</section></section>`, recs[1].Body)
	assert.Equal(t, "headline", recs[1].Title)
	assert.Equal(t, []doctree.NavEntry{{ID: "headline2", Title: "subheadline", Path: "1-headline-1#headline2"}}, recs[1].PageNav)

	assert.Equal(t, `<section id="headline3"><h1>headline3</h1><div>lorem ipsum 2</div></section>`, recs[2].Body)
	assert.Equal(t, "headline3", recs[2].Title)
	assert.Equal(t, "/rst-examples/2-headline3", recs[2].Slug)

	assert.Equal(t, `<section id="headline4"><h1>headline 4</h1><div>lorem ipsum 3</div></section>`, recs[3].Body)
	assert.Equal(t, "headline 4", recs[3].Title)
}

func TestTransform_Versioned(t *testing.T) {
	section := `<body><section id="s"><h1>Setup</h1></section></body>`
	latest := object("production/documentation/setupGuide.html", section)
	v1 := object("production/documentation/versions/version-1.0.0/setupGuide.html", section)

	recs := transform(t, latest, v1)
	require.Len(t, recs, 4)

	want := []doctree.VersionEntry{{Path: "", Title: "latest"}, {Path: "/version-1.0.0", Title: "version-1.0.0"}}
	assert.Equal(t, want, recs[0].Sitemap.Versions)
	assert.False(t, recs[0].Sitemap.IsVersion)

	vsm, vpage := recs[2], recs[3]
	assert.True(t, vsm.Sitemap.IsVersion)
	assert.Equal(t, want, vsm.Sitemap.Versions)
	assert.Equal(t, "/documentation", vsm.BasePath)
	assert.Equal(t, "/documentation/version-1.0.0", vsm.BasePathWithVersion)
	assert.Equal(t, "/version-1.0.0", vsm.VersionPath)
	assert.Equal(t, "/documentation/version-1.0.0/1-s", vpage.Slug)
}

func TestTransform_Skips(t *testing.T) {
	tr := NewTransformer()
	tests := []struct {
		name string
		obj  doctree.SourceObject
		want Outcome
	}{
		{"no separator", object("index.html", "<section id='a'><h1>a</h1></section>"), OutcomeShallowKey},
		{"one separator", object("production/index.html", "<section id='a'><h1>a</h1></section>"), OutcomeShallowKey},
		{"shallow image", object("production/logo.png", ""), OutcomeShallowKey},
		{"empty body", object("production/docs/index.html", ""), OutcomeEmptyBody},
		{"blank body", object("production/docs/index.html", "  \n "), OutcomeEmptyBody},
		{"not html", object("production/docs/readme.txt", "hello"), OutcomeUnsupported},
		{"no sections", object("production/docs/index.html", "<html><body><p>hi</p></body></html>"), OutcomeNoSections},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tr.Transform(tt.obj, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
			assert.Empty(t, res.Records)
		})
	}
}

func TestKeyOutcome(t *testing.T) {
	tests := []struct {
		key  string
		want Outcome
		skip bool
	}{
		{"index.html", OutcomeShallowKey, true},
		{"production/logo.png", OutcomeShallowKey, true},
		{"production/docs/readme.txt", OutcomeUnsupported, true},
		{"production/docs/img/a.PNG", OutcomeImage, false},
		{"production/docs/index.html", OutcomePages, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, skip := KeyOutcome(tt.key)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.skip, skip)

			// Keys skipped by name get the same outcome from Transform.
			if skip {
				res, err := NewTransformer().Transform(object(tt.key, "<section id='a'><h1>a</h1></section>"), nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Outcome)
			}
		})
	}
}

func TestTransform_Image(t *testing.T) {
	obj := object("production/docs/img/Diagram.PNG", "")
	res, err := NewTransformer().Transform(obj, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeImage, res.Outcome)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, TypeImage, rec.Internal.Type)
	assert.Equal(t, "s3-image-production/docs/img/Diagram.PNG", rec.Identity)
	assert.Equal(t, obj.URL, rec.URL)
	assert.Empty(t, rec.Body)
}

func TestTransform_MissingH1NamesKey(t *testing.T) {
	obj := object("production/docs/index.html", `<body><section id="a"><h2>no h1</h2></section></body>`)
	_, err := NewTransformer().Transform(obj, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sections.ErrMissingHeading))
	assert.Contains(t, err.Error(), "production/docs/index.html")

	var mh *sections.MissingHeadingError
	require.True(t, errors.As(err, &mh))
	assert.Equal(t, "a", mh.SectionID)
	assert.Equal(t, 1, mh.Ordinal)
}

func TestTransform_DigestsAndContent(t *testing.T) {
	body := `<body><section id="a"><h1>A</h1></section></body>`
	first := transform(t, object("production/docs/index.html", body))
	again := transform(t, object("production/docs/index.html", body))
	changed := transform(t, object("production/docs/index.html", `<body><section id="a"><h1>A!</h1></section></body>`))

	require.Len(t, first, 2)
	assert.Equal(t, first[1].Internal.ContentDigest, again[1].Internal.ContentDigest)
	assert.Equal(t, first[0].Internal.ContentDigest, again[0].Internal.ContentDigest)
	assert.NotEqual(t, first[1].Internal.ContentDigest, changed[1].Internal.ContentDigest)

	var meta doctree.Metadata
	require.NoError(t, json.Unmarshal([]byte(first[1].Internal.Content), &meta))
	assert.Equal(t, "production/docs/index.html", meta.Key)
	assert.Equal(t, "docs-test", meta.Bucket)
	assert.Equal(t, int64(2398), meta.Size)
}

func TestTransform_SanitizesBody(t *testing.T) {
	recs := transform(t, object("production/docs/index.html",
		`<body><section id="a"><h1>A</h1><script>alert(1)</script><p onclick="x()">p</p></section></body>`))
	require.Len(t, recs, 2)
	assert.Equal(t, `<section id="a"><h1>A</h1><p>p</p></section>`, recs[1].Body)
}

type collectSink struct {
	recs   []Record
	failAt int
}

func (s *collectSink) Emit(_ context.Context, rec Record) error {
	if s.failAt > 0 && len(s.recs) == s.failAt {
		return errors.New("sink down")
	}
	s.recs = append(s.recs, rec)
	return nil
}

func TestEmit_Order(t *testing.T) {
	recs := transform(t, object("production/docs/index.html",
		`<body><section id="a"><h1>A</h1></section><section id="b"><h1>B</h1></section></body>`))
	sink := &collectSink{}
	n, err := Emit(context.Background(), sink, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, TypeSitemap, sink.recs[0].Internal.Type)
	assert.Equal(t, "a", sink.recs[1].SectionID)
	assert.Equal(t, "b", sink.recs[2].SectionID)
}

func TestEmit_StopsOnError(t *testing.T) {
	recs := transform(t, object("production/docs/index.html",
		`<body><section id="a"><h1>A</h1></section><section id="b"><h1>B</h1></section></body>`))
	sink := &collectSink{failAt: 2}
	n, err := Emit(context.Background(), sink, recs)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, err.Error(), "s3-object-production/docs/index.html-b")
}
