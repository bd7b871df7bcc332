// Package jobs defines the analysis job queue: job records, payloads and
// their persistence.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of async job
type JobType string

const (
	JobTypeAnalysis JobType = "analysis"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job represents an async analysis job
type Job struct {
	ID          uuid.UUID       `json:"id"`
	ProjectID   uuid.UUID       `json:"project_id"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AnalysisPayload is the payload for analysis jobs
type AnalysisPayload struct {
	ProjectID     uuid.UUID `json:"project_id"`
	RepoURL       string    `json:"repo_url,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	WorkspacePath string    `json:"workspace_path,omitempty"`
}

// AnalysisResult summarizes a completed analysis job
type AnalysisResult struct {
	FindingsCount  int            `json:"findings_count"`
	FilesExtracted int            `json:"files_extracted"`
	FilesSkipped   int            `json:"files_skipped"`
	FilesFailed    int            `json:"files_failed"`
	PerLayerStats  map[string]int `json:"per_layer_stats,omitempty"`
	CommitSHA      string         `json:"commit_sha,omitempty"`
}

// NewJob creates a new pending analysis job
func NewJob(projectID uuid.UUID, payload AnalysisPayload) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:        uuid.New(),
		ProjectID: projectID,
		Status:    StatusPending,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// GetPayload unmarshals the payload into the provided struct
func (j *Job) GetPayload(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// JobMessage is the message sent via NATS for job notifications
type JobMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
}

// Encode serializes the job message to JSON
func (m *JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeJobMessage deserializes a job message from JSON
func DecodeJobMessage(data []byte) (*JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
