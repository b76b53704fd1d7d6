package job

import "time"

// Status represents the current state of a transcription request
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Meta describes the request a job runs
type Meta struct {
	Source      string `json:"source"` // upload, url
	Format      string `json:"format"`
	Language    string `json:"language"`
	Diarization bool   `json:"speaker_diarization"`
}

// Job is a snapshot of one tracked transcription request
type Job struct {
	Meta
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Degraded    bool       `json:"degraded,omitempty"`
	Duration    float64    `json:"duration,omitempty"` // audio seconds
	Segments    int        `json:"segments,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Stats reports slot usage
type Stats struct {
	Capacity int `json:"capacity"`
	Running  int `json:"running"`
	Waiting  int `json:"waiting"`
}
