package model

import (
	"context"
	"io"
	"time"
)

// DatasetSource opens a labeled training dataset.
type DatasetSource interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	// Describe returns a short, loggable description (path, object key).
	Describe() string
}

// JobStatus is the lifecycle state of a retraining job.
type JobStatus string

// Job states.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// RetrainJob is the payload flowing through the retraining queue.
type RetrainJob struct {
	ID          string
	Source      DatasetSource
	SubmittedAt time.Time
}

// JobInfo is the externally visible state of a retraining job.
type JobInfo struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Source      string    `json:"source"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
	// Version is the published artifact version of a successful job.
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
	// Column names the offending dataset column of a schema failure.
	Column string `json:"column,omitempty"`
}

// Terminal reports whether the job has finished.
func (j JobInfo) Terminal() bool { //nolint:gocritic // value receiver matches the registry copies
	return j.Status == JobSucceeded || j.Status == JobFailed
}
