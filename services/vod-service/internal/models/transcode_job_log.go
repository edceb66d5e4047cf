package models

import "time"

// TranscodeJobStatus represents the status of one transcode attempt
type TranscodeJobStatus string

const (
	TranscodeJobStatusQueued    TranscodeJobStatus = "QUEUED"
	TranscodeJobStatusCompleted TranscodeJobStatus = "COMPLETED"
	TranscodeJobStatusFailed    TranscodeJobStatus = "FAILED"
	TranscodeJobStatusTimedOut  TranscodeJobStatus = "TIMED_OUT"
)

// IsFinal reports whether the attempt has been closed
func (s TranscodeJobStatus) IsFinal() bool {
	return s != TranscodeJobStatusQueued
}

// TranscodeJobLog is one attempt to transcode a media. Rows are append-only and closed once.
type TranscodeJobLog struct {
	ID         int                `json:"id"`
	MediaID    string             `json:"mediaId"`
	JobID      string             `json:"jobId"`
	Attempt    int                `json:"attempt"`
	Status     TranscodeJobStatus `json:"status"`
	StartedAt  time.Time          `json:"startedAt"`
	EndedAt    *time.Time         `json:"endedAt,omitempty"`
	DurationMs *int64             `json:"durationMs,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// TranscodeJobPayload is the queue message consumed by the external transcode worker
type TranscodeJobPayload struct {
	JobID        string `json:"jobId"`
	MediaID      string `json:"mediaId"`
	StorageKey   string `json:"storageKey"`
	MimeType     string `json:"mimeType"`
	OutputPrefix string `json:"outputPrefix"`
	Attempt      int    `json:"attempt"`
}

// StuckJob is a PROCESSING media whose open attempt started before the SLA cutoff
type StuckJob struct {
	MediaID   string
	JobID     string
	Attempt   int
	StartedAt time.Time
}
