// Package metrics exposes run and transform counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docsplit"

// Stage names used for stage_duration_seconds.
const (
	StageList      = "list"
	StageIndex     = "index"
	StageTransform = "transform"
	StageEmit      = "emit"
)

// Recorder records pipeline metrics. All methods are safe on a nil receiver
// so callers can run without metrics.
type Recorder struct {
	documents     *prom.CounterVec
	recordsOut    *prom.CounterVec
	links         prom.Counter
	stageDuration *prom.HistogramVec
	runDuration   prom.Histogram
	runs          *prom.CounterVec
}

// NewRecorder constructs the metrics and registers them with reg. A nil reg
// gets a private registry.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		documents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Objects processed by transform result",
		}, []string{"result"}),
		recordsOut: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Records delivered to the sink by record type",
		}, []string{"type"}),
		links: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "links_rewritten_total",
			Help:      "In-page anchors rewritten to cross-page links",
		}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual run stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.DefBuckets,
		}),
		runs: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by final status",
		}, []string{"outcome"}),
	}
	reg.MustRegister(r.documents, r.recordsOut, r.links, r.stageDuration, r.runDuration, r.runs)
	return r
}

func (r *Recorder) IncDocument(result string) {
	if r == nil {
		return
	}
	r.documents.WithLabelValues(result).Inc()
}

func (r *Recorder) AddRecords(recordType string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.recordsOut.WithLabelValues(recordType).Add(float64(n))
}

func (r *Recorder) AddLinksRewritten(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.links.Add(float64(n))
}

func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (r *Recorder) ObserveRun(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
	r.runs.WithLabelValues(outcome).Inc()
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
