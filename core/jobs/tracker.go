package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/siherrmann/legalrag/model"
)

const (
	DefaultMaxJobs   = 50
	DefaultRetention = 24 * time.Hour
)

// Tracker keeps the rebuild job records in memory. Get hands out copies so a
// reader never observes a record while it is being updated.
type Tracker struct {
	mu        sync.Mutex
	jobs      map[string]*model.RebuildJob
	cancels   map[string]context.CancelFunc
	maxJobs   int
	retention time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker that keeps at most maxJobs finished jobs for
// at most retention. Non-positive values select the defaults.
func NewTracker(maxJobs int, retention time.Duration) *Tracker {
	if maxJobs <= 0 {
		maxJobs = DefaultMaxJobs
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{
		jobs:      map[string]*model.RebuildJob{},
		cancels:   map[string]context.CancelFunc{},
		maxJobs:   maxJobs,
		retention: retention,
		now:       time.Now,
	}
}

// Create registers job together with the function cancelling its run.
func (t *Tracker) Create(job *model.RebuildJob, cancel context.CancelFunc) *model.RebuildJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evict()
	stored := copyJob(job)
	t.jobs[stored.ID] = stored
	if cancel != nil {
		t.cancels[stored.ID] = cancel
	}
	return copyJob(stored)
}

// Update applies fn to the stored job under the lock.
func (t *Tracker) Update(id string, fn func(job *model.RebuildJob)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	fn(job)
	if job.Terminal() {
		delete(t.cancels, id)
	}
	return nil
}

// Get returns a copy of the job.
func (t *Tracker) Get(id string) (*model.RebuildJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	return copyJob(job), nil
}

// List returns copies of all jobs, newest first.
func (t *Tracker) List() []*model.RebuildJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	jobs := make([]*model.RebuildJob, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, copyJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// Cancel stops a running job. The job itself records the cancellation when
// its run returns. Cancelling a finished job is a no-op.
func (t *Tracker) Cancel(id string) (*model.RebuildJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrJobNotFound, id)
	}
	if cancel, ok := t.cancels[id]; ok {
		cancel()
		delete(t.cancels, id)
	}
	return copyJob(job), nil
}

// evict drops finished jobs past the retention and the oldest finished jobs
// beyond maxJobs. Running jobs are never evicted.
func (t *Tracker) evict() {
	cutoff := t.now().Add(-t.retention)

	var finished []*model.RebuildJob
	for id, job := range t.jobs {
		if !job.Terminal() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			continue
		}
		finished = append(finished, job)
	}

	// Make room for the job about to be created.
	excess := len(t.jobs) + 1 - t.maxJobs
	if excess <= 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].StartedAt.Before(finished[j].StartedAt)
	})
	for i := 0; i < excess && i < len(finished); i++ {
		delete(t.jobs, finished[i].ID)
	}
}

func copyJob(job *model.RebuildJob) *model.RebuildJob {
	c := *job
	if job.CompletedAt != nil {
		completedAt := *job.CompletedAt
		c.CompletedAt = &completedAt
	}
	c.ChunkConfig.Separators = append([]string(nil), job.ChunkConfig.Separators...)
	return &c
}
