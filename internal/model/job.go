package model

import "time"

// JobStatus is the lifecycle state of a render job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job represents one render request with its own lifecycle and output.
// Exactly one of Result/Error is set once the job reaches a terminal
// state; Options is immutable after submission.
type Job struct {
	ID          string        `json:"id"`
	ModelID     string        `json:"modelId"`
	Status      JobStatus     `json:"status"`
	Options     RenderOptions `json:"options"`
	Progress    int           `json:"progress"`
	Result      *RenderResult `json:"result,omitempty"`
	Error       *string       `json:"error,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Artifact is one finished output file of a job.
type Artifact struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	URL   string `json:"url,omitempty"`
	Size  int64  `json:"size"`
}

// ArtifactError records a single view that failed while the job as a
// whole still completed.
type ArtifactError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// RenderResult is the output manifest of a completed job.
type RenderResult struct {
	Artifacts []Artifact      `json:"artifacts"`
	Errors    []ArtifactError `json:"errors,omitempty"`
}

// Stats holds aggregate job and queue counters for health reporting.
type Stats struct {
	Pending     int `json:"pending"`
	Processing  int `json:"processing"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Cancelled   int `json:"cancelled"`
	ActiveCount int `json:"activeCount"`
	QueueDepth  int `json:"queueDepth"`
}
