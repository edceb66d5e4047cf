package models

import (
	"path"
	"strconv"
	"time"
)

// Assignment is a graded piece of work attached to a course
type Assignment struct {
	ID          int       `json:"id"`
	CourseID    int       `json:"courseId"`
	AuthorID    int       `json:"authorId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     time.Time `json:"dueDate"`
	MaxMarks    int       `json:"maxMarks"`
}

// SubmissionStatus represents the grading state of a submission
type SubmissionStatus string

const (
	SubmissionStatusPendingUpload SubmissionStatus = "PENDING_UPLOAD"
	SubmissionStatusSubmitted     SubmissionStatus = "SUBMITTED"
	SubmissionStatusGraded        SubmissionStatus = "GRADED"
)

// AssignmentSubmission is the single submission of a learner for an assignment
type AssignmentSubmission struct {
	ID           string           `json:"id"`
	AssignmentID int              `json:"assignmentId"`
	UserID       int              `json:"userId"`
	StorageKey   string           `json:"storageKey"`
	FileName     string           `json:"fileName"`
	Status       SubmissionStatus `json:"status"`
	IsLate       bool             `json:"isLate"`
	SubmittedAt  *time.Time       `json:"submittedAt,omitempty"`
	Marks        *int             `json:"marks,omitempty"`
	Feedback     string           `json:"feedback,omitempty"`
	GradedAt     *time.Time       `json:"gradedAt,omitempty"`
	GradedBy     *int             `json:"gradedBy,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// SubmissionStorageKey derives the blob key of a submission file
func SubmissionStorageKey(assignmentID, userID int, submissionID, fileName string) string {
	return path.Join("assignments", strconv.Itoa(assignmentID), strconv.Itoa(userID), submissionID, fileName)
}

// SubmissionGrant is a pre-signed upload URL for a submission file
type SubmissionGrant struct {
	UploadURL    string    `json:"uploadUrl"`
	SubmissionID string    `json:"submissionId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SubmissionUploadRequest represents a request for a submission upload URL
type SubmissionUploadRequest struct {
	FileName string `json:"fileName" validate:"required,max=255"`
}

// GradeSubmissionRequest represents a grading decision
type GradeSubmissionRequest struct {
	Marks    *int   `json:"marks" validate:"required"`
	Feedback string `json:"feedback" validate:"max=5000"`
}
