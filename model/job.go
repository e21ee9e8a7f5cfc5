package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// RebuildJobPrefix starts every rebuild job id.
const RebuildJobPrefix = "rebuild_"

// RebuildJob is the progress record of a full index rebuild.
type RebuildJob struct {
	ID          string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	TotalFiles  int            `json:"total_files"`
	Processed   int            `json:"processed"`
	CurrentFile string         `json:"current_file,omitempty"`
	TotalChunks int            `json:"total_chunks"`
	FailedFiles int            `json:"failed_files"`
	Error       string         `json:"error,omitempty"`
	ChunkConfig ChunkingConfig `json:"chunk_config"`
}

// NewRebuildJob creates a processing job with a fresh id.
func NewRebuildJob(totalFiles int, cfg ChunkingConfig) *RebuildJob {
	return &RebuildJob{
		ID:          NewRebuildJobID(),
		Status:      JobStatusProcessing,
		StartedAt:   time.Now().UTC(),
		TotalFiles:  totalFiles,
		ChunkConfig: cfg,
	}
}

// NewRebuildJobID returns "rebuild_" followed by 8 hex characters.
func NewRebuildJobID() string {
	return RebuildJobPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Terminal reports whether the job has finished.
func (j *RebuildJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Percentage is the share of processed files, rounded to whole percent.
func (j *RebuildJob) Percentage() float64 {
	if j.TotalFiles == 0 {
		return 0
	}
	return Round(float64(j.Processed)/float64(j.TotalFiles)*100, 0)
}

// Elapsed is the runtime of the job up to completion or now.
func (j *RebuildJob) Elapsed() time.Duration {
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(j.StartedAt)
	}
	return time.Since(j.StartedAt)
}

// Complete marks the job as completed.
func (j *RebuildJob) Complete() {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Processed = j.TotalFiles
	j.CurrentFile = ""
}

// Fail marks the job as failed with err.
func (j *RebuildJob) Fail(err error) {
	now := time.Now().UTC()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	if err != nil {
		j.Error = err.Error()
	} else {
		j.Error = "unknown error"
	}
}
