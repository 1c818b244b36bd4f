package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reverie-ai/reverie/internal/models"
	"github.com/reverie-ai/reverie/internal/service"
)

func TestJobLifecycle(t *testing.T) {
	m := service.NewJobManager()

	job := m.CreateJob(service.JobTypeIngestAll, []string{"char-a", "char-b", "char-c"})
	require.NotNil(t, job)
	assert.Len(t, job.ID, 8)

	snap := job.Snapshot()
	assert.Equal(t, service.JobStatusPending, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 0, snap.Progress)
	assert.Nil(t, snap.CompletedAt)
	assert.False(t, job.Done())

	m.SetRunning(job)
	assert.Equal(t, service.JobStatusRunning, job.Snapshot().Status)

	m.UpdateProgress(job, 2, 3)
	snap = job.Snapshot()
	assert.Equal(t, 2, snap.Progress)
	assert.Equal(t, 3, snap.Total)

	m.Complete(job, []models.CharacterResult{
		{CharacterID: "char-a", Stats: &models.IngestStats{ChunksCreated: 2}},
		{CharacterID: "char-b", Stats: &models.IngestStats{ChunksCreated: 1}},
		{CharacterID: "char-c", Error: "embed biography: provider offline"},
	})

	snap = job.Snapshot()
	assert.Equal(t, service.JobStatusCompleted, snap.Status)
	assert.Equal(t, snap.Total, snap.Progress)
	assert.Len(t, snap.Results, 3)
	require.NotNil(t, snap.CompletedAt)
	assert.True(t, job.Done())
}

func TestJobFail(t *testing.T) {
	m := service.NewJobManager()
	job := m.CreateJob(service.JobTypeIngest, []string{"char-a"})

	m.SetRunning(job)
	m.Fail(job, errors.New("store unavailable"))

	snap := job.Snapshot()
	assert.Equal(t, service.JobStatusFailed, snap.Status)
	assert.Equal(t, "store unavailable", snap.Error)
	require.NotNil(t, snap.CompletedAt)
	assert.True(t, job.Done())
}

func TestJobProgressPromotesPending(t *testing.T) {
	m := service.NewJobManager()
	job := m.CreateJob(service.JobTypeIngestAll, []string{"char-a", "char-b"})

	// A progress update on a pending job implies it started.
	m.UpdateProgress(job, 1, 2)
	assert.Equal(t, service.JobStatusRunning, job.Snapshot().Status)
}

func TestGetJob(t *testing.T) {
	m := service.NewJobManager()
	job := m.CreateJob(service.JobTypeIngest, []string{"char-a"})

	assert.Same(t, job, m.GetJob(job.ID))
	assert.Nil(t, m.GetJob("missing"))
}

func TestListJobsMostRecentFirst(t *testing.T) {
	m := service.NewJobManager()

	first := m.CreateJob(service.JobTypeIngest, []string{"char-a"})
	time.Sleep(2 * time.Millisecond)
	second := m.CreateJob(service.JobTypeIngest, []string{"char-b"})
	time.Sleep(2 * time.Millisecond)
	third := m.CreateJob(service.JobTypeIngestAll, []string{"char-a", "char-b"})

	jobs := m.ListJobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, third.ID, jobs[0].ID)
	assert.Equal(t, second.ID, jobs[1].ID)
	assert.Equal(t, first.ID, jobs[2].ID)
}
