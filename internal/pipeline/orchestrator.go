package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsplit/internal/config"
	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/doctree"
	"github.com/dgallion1/docsplit/internal/metrics"
	"github.com/dgallion1/docsplit/internal/objectstore"
	"github.com/dgallion1/docsplit/internal/records"
)

// ErrStopped is returned by Submit once Stop has been called.
var ErrStopped = errors.New("pipeline is stopped")

// SourceFactory returns the source for a run over buckets. An empty list
// means the configured buckets.
type SourceFactory func(ctx context.Context, buckets []string) (objectstore.Source, error)

// Orchestrator queues runs and executes them on a fixed worker pool.
type Orchestrator struct {
	jobs      *JobStore
	queue     chan *Job
	newSource SourceFactory
	sink      records.Sink
	metrics   *metrics.Recorder
	log       *slog.Logger
	cfg       config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex // guards stopped against sends on the closed queue
	stopped bool
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, newSource SourceFactory, sink records.Sink, rec *metrics.Recorder, log *slog.Logger) *Orchestrator {
	cfg.ApplyDefaults()
	return &Orchestrator{
		jobs:      NewJobStore(cfg.JobTTL),
		queue:     make(chan *Job, cfg.MaxQueueSize),
		newSource: newSource,
		sink:      sink,
		metrics:   rec,
		log:       log,
		cfg:       cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker(o.sink)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.run(workerCtx, w, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

func (o *Orchestrator) run(ctx context.Context, w *Worker, job *Job) {
	src, err := o.newSource(ctx, job.Buckets)
	if err != nil {
		o.log.Error("source setup failed", "run_id", job.ID, "error", err)
		job.AddError(fmt.Sprintf("source: %s", err))
		job.SetStatus(StatusFailed, "listing")
		o.metrics.ObserveRun(string(StatusFailed), 0)
		return
	}
	w.Process(ctx, job, src)
}

func (o *Orchestrator) newWorker(sink records.Sink) *Worker {
	return NewWorker(sink, o.metrics, o.log, o.cfg.DocConcurrency, MaxRetries)
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit queues a new run for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("run queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// TransformObjects runs both passes synchronously over objects that already
// carry their bodies and returns the run state with every emitted record.
func (o *Orchestrator) TransformObjects(ctx context.Context, objs []doctree.SourceObject) (JobSnapshot, []records.Record) {
	sink := contentgraph.NewMemorySink()
	job := NewJob(nil)
	o.newWorker(sink).Process(ctx, job, objectstore.NewStaticSource(objs))
	return job.Snapshot(), sink.Records()
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// JobCounts returns tracked runs by status.
func (o *Orchestrator) JobCounts() map[JobStatus]int {
	return o.jobs.CountByStatus()
}

// Workers returns the size of the worker pool.
func (o *Orchestrator) Workers() int {
	return o.cfg.WorkerCount
}
