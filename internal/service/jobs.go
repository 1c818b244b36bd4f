package service

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reverie-ai/reverie/internal/models"
)

// JobStatus represents the state of a background job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job types.
const (
	JobTypeIngest    = "ingest"
	JobTypeIngestAll = "ingest_all"
)

// Job tracks one background ingestion run. Jobs live in process memory for
// the lifetime of the server; a restart forgets them, which is safe because
// re-running an ingestion is idempotent.
type Job struct {
	ID           string                   `json:"id"`
	Type         string                   `json:"type"`
	Status       JobStatus                `json:"status"`
	CharacterIDs []string                 `json:"character_ids,omitempty"`
	Progress     int                      `json:"progress"`
	Total        int                      `json:"total"`
	Results      []models.CharacterResult `json:"results,omitempty"`
	Error        string                   `json:"error,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`

	mu sync.RWMutex
}

// JobManager tracks and manages background jobs.
type JobManager struct {
	jobs map[string]*Job
	mu   sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// CreateJob registers a new pending job.
func (m *JobManager) CreateJob(jobType string, characterIDs []string) *Job {
	job := &Job{
		ID:           uuid.New().String()[:8], // Short ID for convenience
		Type:         jobType,
		Status:       JobStatusPending,
		CharacterIDs: characterIDs,
		Total:        len(characterIDs),
		StartedAt:    time.Now(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	slog.Info("job created", "job_id", job.ID, "type", jobType, "characters", len(characterIDs))
	return job
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, most recent first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}

	slices.SortFunc(jobs, func(a, b *Job) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return jobs
}

// SetRunning marks a job as running.
func (m *JobManager) SetRunning(job *Job) {
	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
}

// UpdateProgress records how many characters have finished.
func (m *JobManager) UpdateProgress(job *Job, done, total int) {
	job.mu.Lock()
	job.Progress = done
	job.Total = total
	if job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
	job.mu.Unlock()
}

// Complete marks a job as finished with its per-character results.
func (m *JobManager) Complete(job *Job, results []models.CharacterResult) {
	job.mu.Lock()
	job.Status = JobStatusCompleted
	job.Results = results
	job.Progress = job.Total
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("job completed", "job_id", job.ID, "characters", len(results), "failed", failed)
}

// Fail marks a job as failed.
func (m *JobManager) Fail(job *Job, err error) {
	job.mu.Lock()
	job.Status = JobStatusFailed
	job.Error = err.Error()
	now := time.Now()
	job.CompletedAt = &now
	job.mu.Unlock()

	slog.Error("job failed", "job_id", job.ID, "error", err)
}

// Snapshot returns a thread-safe copy of job state.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:           j.ID,
		Type:         j.Type,
		Status:       j.Status,
		CharacterIDs: j.CharacterIDs,
		Progress:     j.Progress,
		Total:        j.Total,
		Results:      j.Results,
		Error:        j.Error,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
