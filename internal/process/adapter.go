// internal/process/adapter.go
package process

import "time"

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one delivery of a process message for logging and the done event.
type Job struct {
	ID         string
	Identifier string
	Attempt    int
	Status     JobStatus
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func NewJob(id, identifier string, attempt int) *Job {
	return &Job{
		ID:         id,
		Identifier: identifier,
		Attempt:    attempt,
		Status:     JobStatusPending,
	}
}

func MarkRunning(j *Job) {
	j.Status = JobStatusRunning
	j.StartedAt = time.Now()
}

func MarkSucceeded(j *Job) {
	j.Status = JobStatusSucceeded
	j.FinishedAt = time.Now()
}

func MarkFailed(j *Job, err error) {
	j.Status = JobStatusFailed
	j.FinishedAt = time.Now()
	if err != nil {
		j.Error = err.Error()
	}
}

// Duration is the time between MarkRunning and the final mark, or until now
// for a running job.
func (j *Job) Duration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	if j.FinishedAt.IsZero() {
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
