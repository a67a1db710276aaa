package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/records"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeSource serves fixed objects; transient load failures can be injected
// per key.
type fakeSource struct {
	objs    []doctree.SourceObject
	listErr error

	mu        sync.Mutex
	loads     map[string]int
	transient map[string]int // remaining retryable failures per key
	permanent map[string]error
}

func newFakeSource(objs ...doctree.SourceObject) *fakeSource {
	return &fakeSource{
		objs:      objs,
		loads:     make(map[string]int),
		transient: make(map[string]int),
		permanent: make(map[string]error),
	}
}

func (s *fakeSource) List(context.Context) ([]doctree.SourceObject, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	// Bodies arrive on Load, as with a real bucket listing.
	out := make([]doctree.SourceObject, len(s.objs))
	for i, o := range s.objs {
		o.Body = ""
		out[i] = o
	}
	return out, nil
}

func (s *fakeSource) Load(_ context.Context, obj doctree.SourceObject) (doctree.SourceObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[obj.Key]++
	if err := s.permanent[obj.Key]; err != nil {
		return obj, err
	}
	if s.transient[obj.Key] > 0 {
		s.transient[obj.Key]--
		return obj, &objectstore.RetryableError{Op: "get", Err: errors.New("throttled")}
	}
	for _, o := range s.objs {
		if o.Key == obj.Key {
			obj.Body = o.Body
		}
	}
	obj.URL = "https://example.com/" + obj.Key
	return obj, nil
}

func obj(key, body string) doctree.SourceObject {
	return doctree.SourceObject{Bucket: "docs", Key: key, ETag: `"e"`, Size: int64(len(body)), Body: body}
}

const onePage = `<body><section id="a"><h1>A</h1><p>text</p></section></body>`

func testWorker(sink records.Sink, rec *metrics.Recorder) *Worker {
	w := NewWorker(sink, rec, discard, 4, MaxRetries)
	w.retryDelay = time.Millisecond
	return w
}

func TestWorker_ProcessCompleted(t *testing.T) {
	src := newFakeSource(
		obj("production/docs/index.html", onePage),
		obj("production/docs/versions/v1/index.html", onePage),
		obj("production/docs/img/a.png", ""),
		obj("production/index.html", onePage),
		obj("production/docs/readme.txt", "hi"),
	)
	sink := contentgraph.NewMemorySink()
	reg := prom.NewRegistry()
	rec := metrics.NewRecorder(reg)

	job := NewJob(nil)
	testWorker(sink, rec).Process(context.Background(), job, src)

	snap := job.Snapshot()
	require.Equal(t, StatusCompleted, snap.Status, "errors: %v", snap.Progress.Errors)
	assert.Equal(t, 5, snap.Progress.Objects)
	assert.Equal(t, 1, snap.Progress.VersionedPaths)
	assert.Equal(t, 5, snap.Progress.Processed)
	assert.Equal(t, 2, snap.Progress.Pages)
	assert.Equal(t, 2, snap.Progress.Skipped)
	assert.Equal(t, 5, snap.Progress.Records)
	assert.Equal(t, 5, sink.Len())

	// Skipped keys are never downloaded.
	assert.Zero(t, src.loads["production/index.html"])
	assert.Zero(t, src.loads["production/docs/readme.txt"])
	assert.Equal(t, 1, src.loads["production/docs/img/a.png"])

	// Both sitemaps see the version registered by the other key.
	var sitemaps int
	for _, r := range sink.Records() {
		if r.Internal.Type == records.TypeSitemap {
			sitemaps++
			require.Len(t, r.Sitemap.Versions, 2)
			assert.Equal(t, "latest", r.Sitemap.Versions[0].Title)
			assert.Equal(t, "v1", r.Sitemap.Versions[1].Title)
		}
		if r.Internal.Type == records.TypeImage {
			assert.Equal(t, "https://example.com/production/docs/img/a.png", r.URL)
		}
	}
	assert.Equal(t, 2, sitemaps)

	assert.Equal(t, 2.0, counterValue(t, reg, "docsplit_documents_total", "pages"))
}

// counterValue reads a labelled counter from reg.
func counterValue(t *testing.T, reg *prom.Registry, name, label string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestWorker_PerDocumentErrorIsPartial(t *testing.T) {
	src := newFakeSource(
		obj("production/docs/index.html", onePage),
		obj("production/docs/broken.html", `<body><section id="x"><h2>no h1</h2></section></body>`),
	)
	sink := contentgraph.NewMemorySink()
	job := NewJob(nil)
	testWorker(sink, nil).Process(context.Background(), job, src)

	snap := job.Snapshot()
	assert.Equal(t, StatusPartial, snap.Status)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "production/docs/broken.html")
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, 2, snap.Progress.Processed)
}

func TestWorker_ListFailure(t *testing.T) {
	src := newFakeSource()
	src.listErr = errors.New("access denied")
	job := NewJob(nil)
	testWorker(contentgraph.NewMemorySink(), nil).Process(context.Background(), job, src)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "listing", snap.Phase)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "access denied")
}

func TestWorker_RetriesTransientLoad(t *testing.T) {
	src := newFakeSource(obj("production/docs/index.html", onePage))
	src.transient["production/docs/index.html"] = 2
	sink := contentgraph.NewMemorySink()
	job := NewJob(nil)
	testWorker(sink, nil).Process(context.Background(), job, src)

	assert.Equal(t, StatusCompleted, job.Snapshot().Status)
	assert.Equal(t, 3, src.loads["production/docs/index.html"])
	assert.Equal(t, 2, sink.Len())
}

func TestWorker_PermanentLoadFailureSkipsObject(t *testing.T) {
	src := newFakeSource(obj("production/docs/index.html", onePage))
	src.permanent["production/docs/index.html"] = errors.New("no such key")
	job := NewJob(nil)
	testWorker(contentgraph.NewMemorySink(), nil).Process(context.Background(), job, src)

	snap := job.Snapshot()
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 1, snap.Progress.Skipped)
	assert.Empty(t, snap.Progress.Errors)
	assert.Equal(t, 1, src.loads["production/docs/index.html"])
}

type failingSink struct{}

func (failingSink) Emit(context.Context, records.Record) error { return errors.New("sink down") }

func TestWorker_SinkFailure(t *testing.T) {
	src := newFakeSource(obj("production/docs/index.html", onePage))
	job := NewJob(nil)
	testWorker(failingSink{}, nil).Process(context.Background(), job, src)

	snap := job.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	require.Len(t, snap.Progress.Errors, 1)
	assert.Contains(t, snap.Progress.Errors[0], "sink down")
}

func TestWorker_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job := NewJob(nil)
	testWorker(contentgraph.NewMemorySink(), nil).Process(ctx, job, newFakeSource(obj("production/docs/index.html", onePage)))
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&objectstore.RetryableError{Op: "get", Err: errors.New("x")}))
	assert.True(t, IsRetryable(&contentgraph.RetryableError{StatusCode: 503, Err: errors.New("x")}))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func waitTerminal(t *testing.T, o *Orchestrator, id string) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := o.GetJob(id); job != nil {
			if snap := job.Snapshot(); snap.Status.Terminal() {
				return snap
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return JobSnapshot{}
}

func TestOrchestrator_SubmitRuns(t *testing.T) {
	src := newFakeSource(obj("production/docs/index.html", onePage))
	var gotBuckets []string
	factory := func(_ context.Context, buckets []string) (objectstore.Source, error) {
		gotBuckets = buckets
		return src, nil
	}
	sink := contentgraph.NewMemorySink()
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 4}, factory, sink, nil, discard)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob([]string{"docs"})
	require.NoError(t, o.Submit(job))

	snap := waitTerminal(t, o, job.ID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, []string{"docs"}, gotBuckets)
	assert.Equal(t, 2, sink.Len())
	assert.Equal(t, 1, o.JobCounts()[StatusCompleted])
}

func TestOrchestrator_SourceFactoryError(t *testing.T) {
	factory := func(context.Context, []string) (objectstore.Source, error) {
		return nil, errors.New("no credentials")
	}
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 4}, factory, contentgraph.NewMemorySink(), nil, discard)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob(nil)
	require.NoError(t, o.Submit(job))
	snap := waitTerminal(t, o, job.ID)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Progress.Errors[0], "no credentials")
}

func TestOrchestrator_QueueFull(t *testing.T) {
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 1}, nil, contentgraph.NewMemorySink(), nil, discard)
	// Workers are not started, so the queue never drains.
	require.NoError(t, o.Submit(NewJob(nil)))
	job := NewJob(nil)
	require.Error(t, o.Submit(job))
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Equal(t, 1, o.QueueDepth())
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(config.Config{WorkerCount: 1, MaxQueueSize: 4}, nil, contentgraph.NewMemorySink(), nil, discard)
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob(nil)
	err := o.Submit(job)
	require.ErrorIs(t, err, ErrStopped)
	assert.Equal(t, StatusFailed, job.Snapshot().Status)
	assert.Equal(t, job.ID, o.GetJob(job.ID).ID)
}

func TestOrchestrator_TransformObjects(t *testing.T) {
	o := NewOrchestrator(config.Config{}, nil, nil, nil, discard)
	snap, recs := o.TransformObjects(context.Background(), []doctree.SourceObject{
		obj("production/docs/index.html", `<body><section id="a"><h1>A</h1><a href="#b">b</a></section><section id="b"><h1>B</h1></section></body>`),
	})
	assert.Equal(t, StatusCompleted, snap.Status)
	require.Len(t, recs, 3)
	assert.Equal(t, records.TypeSitemap, recs[0].Internal.Type)
	assert.Contains(t, recs[1].Body, `href="2-b#b"`)
	assert.Equal(t, 1, snap.Progress.LinksRewritten)
}
