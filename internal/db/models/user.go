package models

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"` // admin, user
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RequestRecord is one finished transcription request
type RequestRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Source      string    `json:"source"` // upload, url
	Format      string    `json:"format"`
	Language    string    `json:"language"`
	Diarization bool      `json:"speaker_diarization"`
	Degraded    bool      `json:"degraded"`
	Duration    float64   `json:"duration"` // audio seconds
	Elapsed     float64   `json:"elapsed"`  // processing seconds
	Segments    int       `json:"segments"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}
