package models

import "time"

// CompletionThreshold is the watch-through ratio at which a video lesson counts as complete
const CompletionThreshold = 0.9

// PlaybackSession tracks one granted playback of a lesson video
type PlaybackSession struct {
	ID               string     `json:"id"`
	UserID           int        `json:"userId"`
	MediaID          *string    `json:"mediaId,omitempty"`
	LessonID         int        `json:"lessonId"`
	CourseID         int        `json:"courseId"`
	StartedAt        time.Time  `json:"startedAt"`
	LastHeartbeatAt  time.Time  `json:"lastHeartbeatAt"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	WatchTimeSeconds int        `json:"watchTimeSeconds"`
	CompletionRate   float64    `json:"completionRate"`
}

// IsOpen reports whether the session still accepts heartbeats at now
func (s *PlaybackSession) IsOpen(now time.Time) bool {
	return s.EndedAt == nil && now.Before(s.ExpiresAt)
}

// PlaybackGrant is a short-lived authorization to fetch one manifest
type PlaybackGrant struct {
	SignedURL string    `json:"signedUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
	SessionID string    `json:"sessionId"`
	// ManifestURL serves the manifest with every nested URI signed for the session
	ManifestURL string `json:"manifestUrl,omitempty"`
	// Legacy is set when the lesson has no transcoded media and SignedURL is the raw video URL
	Legacy bool `json:"legacy,omitempty"`
}

// HeartbeatResult reports the session progress after a heartbeat was applied
type HeartbeatResult struct {
	SessionID        string  `json:"sessionId"`
	WatchTimeSeconds int     `json:"watchTimeSeconds"`
	CompletionRate   float64 `json:"completionRate"`
	LessonCompleted  bool    `json:"lessonCompleted"`
}

// PlaybackTokenRequest represents a request for a playback grant.
// MediaID is empty for legacy URL lessons.
type PlaybackTokenRequest struct {
	MediaID  string `json:"mediaId" validate:"omitempty,uuid"`
	LessonID int    `json:"lessonId" validate:"required,gt=0"`
}

// HeartbeatRequest represents client-reported playback progress
type HeartbeatRequest struct {
	WatchTimeSeconds int      `json:"watchTimeSeconds" validate:"gte=0"`
	CompletionRate   *float64 `json:"completionRate" validate:"required"`
}

// SessionProgress is the monotonic progress of a playback session
type SessionProgress struct {
	WatchTimeSeconds int
	CompletionRate   float64
}

// Merge keeps the maximum of each reported value so out-of-order heartbeats never regress progress
func (p SessionProgress) Merge(reported SessionProgress) SessionProgress {
	return SessionProgress{
		WatchTimeSeconds: max(p.WatchTimeSeconds, reported.WatchTimeSeconds),
		CompletionRate:   max(p.CompletionRate, reported.CompletionRate),
	}
}
