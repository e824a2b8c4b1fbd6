package service

import (
	"errors"
	"sync"
	"time"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/domain/model"
)

// jobRegistry tracks retraining jobs. Once more than limit jobs are known,
// the oldest finished ones are forgotten; queued and running jobs are kept.
type jobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.JobInfo
	order []string
	limit int
	now   func() time.Time
}

func newJobRegistry(limit int, now func() time.Time) *jobRegistry {
	return &jobRegistry{
		jobs:  make(map[string]*model.JobInfo),
		limit: limit,
		now:   now,
	}
}

func (r *jobRegistry) add(job model.RetrainJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = &model.JobInfo{
		ID:          job.ID,
		Status:      model.JobQueued,
		Source:      job.Source.Describe(),
		SubmittedAt: job.SubmittedAt,
	}
	r.order = append(r.order, job.ID)
	r.evict()
}

func (r *jobRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *jobRegistry) start(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if j, ok := r.jobs[id]; ok {
		j.Status = model.JobRunning
		j.StartedAt = r.now()
	}
}

func (r *jobRegistry) finish(id, version string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.FinishedAt = r.now()
	if err == nil {
		j.Status = model.JobSucceeded
		j.Version = version
	} else {
		j.Status = model.JobFailed
		j.Error = err.Error()
		var sve *dataset.SchemaValidationError
		if errors.As(err, &sve) {
			j.Column = sve.Column
		}
	}
	r.evict()
}

func (r *jobRegistry) get(id string) (model.JobInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return model.JobInfo{}, false
	}
	return *j, true
}

func (r *jobRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// evict must be called with mu held.
func (r *jobRegistry) evict() {
	for i := 0; len(r.order) > r.limit && i < len(r.order); {
		id := r.order[i]
		if !r.jobs[id].Terminal() {
			i++
			continue
		}
		delete(r.jobs, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}
