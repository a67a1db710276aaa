package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/records"
	"github.com/dgallion1/docsplit/internal/versions"
	"golang.org/x/sync/errgroup"
)

// Worker executes runs against a sink.
type Worker struct {
	sink        records.Sink
	transformer *records.Transformer
	metrics     *metrics.Recorder
	log         *slog.Logger

	docConcurrency int
	retries        int
	retryDelay     time.Duration
}

func NewWorker(sink records.Sink, rec *metrics.Recorder, log *slog.Logger, docConcurrency, retries int) *Worker {
	if docConcurrency <= 0 {
		docConcurrency = 1
	}
	return &Worker{
		sink:           sink,
		transformer:    records.NewTransformer(),
		metrics:        rec,
		log:            log,
		docConcurrency: docConcurrency,
		retries:        retries,
		retryDelay:     time.Second,
	}
}

// Process runs both passes of a run. Pass one lists every object and builds
// the version index; pass two transforms objects concurrently and emits
// their records. A failing object is recorded on the job and does not stop
// the others.
func (w *Worker) Process(ctx context.Context, job *Job, src objectstore.Source) {
	log := w.log.With("run_id", job.ID)
	start := time.Now()
	defer func() {
		w.metrics.ObserveRun(string(job.Snapshot().Status), time.Since(start))
	}()

	// Pass 1: list and index.
	job.SetStatus(StatusListing, "listing")
	stageStart := time.Now()
	var objs []doctree.SourceObject
	err := withRetry(ctx, w.retries, w.retryDelay, func() error {
		var err error
		objs, err = src.List(ctx)
		return err
	})
	w.metrics.ObserveStage(metrics.StageList, time.Since(stageStart))
	if err != nil {
		log.Error("list failed", "error", err)
		job.AddError(fmt.Sprintf("list: %s", err))
		job.SetStatus(StatusFailed, "listing")
		return
	}

	job.SetStatus(StatusIndexing, "indexing")
	stageStart = time.Now()
	idx := versions.Build(objs)
	w.metrics.ObserveStage(metrics.StageIndex, time.Since(stageStart))
	job.SetListed(len(objs), idx.Len())
	log.Info("indexed objects", "objects", len(objs), "versioned_paths", idx.Len())

	// Pass 2: transform and emit. The index is read-only from here on.
	job.SetStatus(StatusTransforming, "transforming")
	stageStart = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.docConcurrency)
	for _, obj := range objs {
		if gctx.Err() != nil {
			break
		}
		obj := obj
		g.Go(func() error {
			w.processObject(gctx, job, idx, src, obj)
			return nil
		})
	}
	g.Wait()
	w.metrics.ObserveStage(metrics.StageTransform, time.Since(stageStart))

	snap := job.Snapshot()
	log.Info("run complete",
		"processed", snap.Progress.Processed,
		"pages", snap.Progress.Pages,
		"records", snap.Progress.Records,
		"errors", len(snap.Progress.Errors))

	switch {
	case ctx.Err() != nil:
		job.AddError(fmt.Sprintf("canceled: %s", ctx.Err()))
		job.SetStatus(StatusFailed, "canceled")
	case len(snap.Progress.Errors) == 0:
		job.SetStatus(StatusCompleted, "done")
	case snap.Progress.Records > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "transforming")
	}
}

func (w *Worker) processObject(ctx context.Context, job *Job, idx *versions.Index, src objectstore.Source, obj doctree.SourceObject) {
	log := w.log.With("run_id", job.ID, "key", obj.Key)

	// Keys the transformer would skip are not worth a download.
	if out, skip := records.KeyOutcome(obj.Key); skip {
		w.metrics.IncDocument(string(out))
		job.RecordObject(false, true, 0, 0)
		return
	}

	err := withRetry(ctx, w.retries, w.retryDelay, func() error {
		var err error
		obj, err = src.Load(ctx, obj)
		return err
	})
	if err != nil {
		// An object that cannot be fetched is skipped, not failed.
		log.Warn("load failed, skipping object", "error", err)
		w.metrics.IncDocument("load_failed")
		job.RecordObject(false, true, 0, 0)
		return
	}

	res, err := w.transformer.Transform(obj, idx)
	if err != nil {
		w.fail(log, job, obj.Key, "transform", err, 0, 0)
		return
	}
	w.metrics.AddLinksRewritten(res.LinksRewritten)

	emitStart := time.Now()
	emitted, err := w.emit(ctx, res.Records)
	w.metrics.ObserveStage(metrics.StageEmit, time.Since(emitStart))
	if err != nil {
		w.fail(log, job, obj.Key, "emit", err, emitted, res.LinksRewritten)
		return
	}

	w.metrics.IncDocument(string(res.Outcome))
	skipped := len(res.Records) == 0
	job.RecordObject(res.Outcome == records.OutcomePages, skipped, emitted, res.LinksRewritten)
	if res.Outcome == records.OutcomePages {
		log.Debug("document split", "sections", res.Sections, "records", emitted, "links_rewritten", res.LinksRewritten)
	}
}

// emit delivers recs in order. Transient sink failures are retried by the
// sink itself.
func (w *Worker) emit(ctx context.Context, recs []records.Record) (int, error) {
	n, err := records.Emit(ctx, w.sink, recs)
	for _, rec := range recs[:n] {
		w.metrics.AddRecords(string(rec.Internal.Type), 1)
	}
	return n, err
}

func (w *Worker) fail(log *slog.Logger, job *Job, key, stage string, err error, emitted, links int) {
	log.Error(stage+" failed", "error", err)
	w.metrics.IncDocument("error")
	job.RecordObject(false, false, emitted, links)
	job.AddError(fmt.Sprintf("%s %s: %s", stage, key, err))
}
