package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a run.
type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusListing      JobStatus = "listing"
	StatusIndexing     JobStatus = "indexing"
	StatusTransforming JobStatus = "transforming"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
	StatusPartial      JobStatus = "partial"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Job tracks one run: list, index, then transform and emit every object.
type Job struct {
	mu sync.Mutex

	ID      string   `json:"run_id"`
	Buckets []string `json:"buckets,omitempty"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	Objects        int      `json:"objects"`
	VersionedPaths int      `json:"versioned_paths"`
	Processed      int      `json:"processed"`
	Pages          int      `json:"pages"`
	Skipped        int      `json:"skipped"`
	Records        int      `json:"records"`
	LinksRewritten int      `json:"links_rewritten"`
	Errors         []string `json:"errors"`
}

// NewJob returns a queued run over buckets; nil means the configured set.
func NewJob(buckets []string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Buckets:   buckets,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// CountByStatus returns how many tracked jobs are in each status.
func (s *JobStore) CountByStatus() map[JobStatus]int {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	counts := make(map[JobStatus]int)
	for _, job := range jobs {
		counts[job.Snapshot().Status]++
	}
	return counts
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetListed records the size of pass one.
func (j *Job) SetListed(objects, versionedPaths int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Objects = objects
	j.Progress.VersionedPaths = versionedPaths
	j.UpdatedAt = time.Now()
}

// RecordObject accounts for one object finished in pass two.
func (j *Job) RecordObject(pages bool, skipped bool, records, links int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Processed++
	if pages {
		j.Progress.Pages++
	}
	if skipped {
		j.Progress.Skipped++
	}
	j.Progress.Records += records
	j.Progress.LinksRewritten += links
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"run_id"`
	Buckets   []string  `json:"buckets,omitempty"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		Buckets:   j.Buckets,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
