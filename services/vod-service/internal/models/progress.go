package models

import "time"

// CourseProgress is a user's progress on one lesson
type CourseProgress struct {
	ID               int        `json:"id"`
	UserID           int        `json:"userId"`
	LessonID         int        `json:"lessonId"`
	CourseID         int        `json:"courseId"`
	Completed        bool       `json:"completed"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	TimeSpentSeconds int        `json:"timeSpentSeconds"`
}

// EnrollmentStatus represents the state of a user's enrollment in a course
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusExpired   EnrollmentStatus = "EXPIRED"
)

// Enrollment links a user to a course and owns the course completion percentage
type Enrollment struct {
	ID                   int              `json:"id"`
	UserID               int              `json:"userId"`
	CourseID             int              `json:"courseId"`
	Status               EnrollmentStatus `json:"status"`
	CompletionPercentage float64          `json:"completionPercentage"`
	EnrolledAt           time.Time        `json:"enrolledAt"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
}

// IsEntitled reports whether the enrollment grants access to course content
func (e *Enrollment) IsEntitled() bool {
	return e.Status == EnrollmentStatusActive || e.Status == EnrollmentStatusCompleted
}

// CourseCompletion is the recomputed progress of a user in a course
type CourseCompletion struct {
	UserID               int              `json:"userId"`
	CourseID             int              `json:"courseId"`
	CompletedLessons     int              `json:"completedLessons"`
	TotalLessons         int              `json:"totalLessons"`
	CompletionPercentage float64          `json:"completionPercentage"`
	Status               EnrollmentStatus `json:"status"`
}
