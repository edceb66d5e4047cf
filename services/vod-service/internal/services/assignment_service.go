package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	"go.uber.org/zap"
)

// AssignmentRepository defines the interface for assignment and submission data access
type AssignmentRepository interface {
	GetByID(ctx context.Context, id int) (*models.Assignment, error)
	// CreateSubmission returns a conflict error when the user already has a submission
	CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error
	GetSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error)
	GetSubmissionByAssignmentAndUser(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error)
	MarkSubmitted(ctx context.Context, id string, at time.Time) (bool, error)
	Grade(ctx context.Context, id string, marks int, feedback string, gradedBy int, at time.Time) (bool, error)
}

// SubmissionStore signs submission uploads and checks they arrived
type SubmissionStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error)
	Stat(ctx context.Context, key string) (*storage.ObjectInfo, error)
}

// AssignmentLessonFinder finds the lesson graded by an assignment
type AssignmentLessonFinder interface {
	GetByAssignmentID(ctx context.Context, assignmentID int) (*models.Lesson, error)
}

type assignmentService struct {
	repo        AssignmentRepository
	blobs       SubmissionStore
	courses     CourseRepository
	lessons     AssignmentLessonFinder
	enrollments EnrollmentFinder
	completion  LessonCompleter
	uploadTTL   time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService creates a new assignment workflow service
func NewAssignmentService(
	repo AssignmentRepository,
	blobs SubmissionStore,
	courses CourseRepository,
	lessons AssignmentLessonFinder,
	enrollments EnrollmentFinder,
	completion LessonCompleter,
	uploadTTL time.Duration,
	logger *zap.Logger,
) *assignmentService {
	return &assignmentService{
		repo:        repo,
		blobs:       blobs,
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
		completion:  completion,
		uploadTTL:   uploadTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// GenerateSubmissionUpload opens the single submission of a learner and returns a pre-signed upload URL.
// Lateness is decided here and never recomputed. While the submission is still waiting for its file,
// calling again re-signs an upload URL for the stored key.
func (s *assignmentService) GenerateSubmissionUpload(ctx context.Context, assignmentID, userID int, fileName string) (*models.SubmissionGrant, error) {
	assignment, err := s.repo.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := requireEnrollment(ctx, s.enrollments, userID, assignment.CourseID); err != nil {
		return nil, err
	}
	name, err := sanitizeFileName(fileName)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetSubmissionByAssignmentAndUser(ctx, assignmentID, userID)
	if err == nil {
		return s.reissueUpload(ctx, existing)
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		return nil, err
	}

	now := s.now()
	submissionID := uuid.NewString()
	key := models.SubmissionStorageKey(assignmentID, userID, submissionID, name)

	uploadURL, expiresAt, err := s.blobs.PresignPut(ctx, key, "", s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign submission upload: %w", err)
	}

	submission := &models.AssignmentSubmission{
		ID:           submissionID,
		AssignmentID: assignmentID,
		UserID:       userID,
		StorageKey:   key,
		FileName:     name,
		Status:       models.SubmissionStatusPendingUpload,
		IsLate:       now.After(assignment.DueDate),
		CreatedAt:    now,
	}
	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, err
	}

	s.logger.Info("submission opened",
		zap.String("submission_id", submissionID),
		zap.Int("assignment_id", assignmentID),
		zap.Int("user_id", userID),
		zap.Bool("late", submission.IsLate),
	)

	return &models.SubmissionGrant{
		UploadURL:    uploadURL,
		SubmissionID: submissionID,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *assignmentService) reissueUpload(ctx context.Context, submission *models.AssignmentSubmission) (*models.SubmissionGrant, error) {
	if submission.Status != models.SubmissionStatusPendingUpload {
		return nil, apperrors.Conflict("a submission already exists for assignment %d", submission.AssignmentID)
	}

	uploadURL, expiresAt, err := s.blobs.PresignPut(ctx, submission.StorageKey, "", s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to presign submission upload: %w", err)
	}

	s.logger.Info("submission upload re-issued",
		zap.String("submission_id", submission.ID),
		zap.Int("user_id", submission.UserID),
	)

	return &models.SubmissionGrant{
		UploadURL:    uploadURL,
		SubmissionID: submission.ID,
		ExpiresAt:    expiresAt,
	}, nil
}

// CompleteSubmissionUpload moves a submission to SUBMITTED once its file is in the blob store.
// Completing an already submitted submission returns it unchanged.
func (s *assignmentService) CompleteSubmissionUpload(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error) {
	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, apperrors.Authorization("submission belongs to another user")
	}
	if submission.Status != models.SubmissionStatusPendingUpload {
		return submission, nil
	}

	if _, err := s.blobs.Stat(ctx, submission.StorageKey); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.Validation("submission file not found, upload it before completing")
		}
		return nil, fmt.Errorf("failed to verify submission upload: %w", err)
	}

	if _, err := s.repo.MarkSubmitted(ctx, submissionID, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("submission uploaded", zap.String("submission_id", submissionID), zap.Int("user_id", userID))
	return s.repo.GetSubmissionByID(ctx, submissionID)
}

// GradeSubmission records marks and feedback. Only the course author or an admin may grade, and only once.
// Grading completes the lesson regardless of the marks.
func (s *assignmentService) GradeSubmission(ctx context.Context, submissionID string, graderID int, isAdmin bool, marks int, feedback string) (*models.AssignmentSubmission, error) {
	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	assignment, err := s.repo.GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, err
	}
	if marks < 0 || marks > assignment.MaxMarks {
		return nil, apperrors.Validation("marks must be between 0 and %d", assignment.MaxMarks)
	}
	if err := requireCourseAuthor(ctx, s.courses, assignment.CourseID, graderID, isAdmin); err != nil {
		return nil, err
	}

	switch submission.Status {
	case models.SubmissionStatusGraded:
		return nil, apperrors.Conflict("submission has already been graded")
	case models.SubmissionStatusPendingUpload:
		return nil, apperrors.Conflict("submission upload has not been completed")
	}

	graded, err := s.repo.Grade(ctx, submissionID, marks, feedback, graderID, s.now())
	if err != nil {
		return nil, err
	}
	if !graded {
		return nil, apperrors.Conflict("submission has already been graded")
	}

	lesson, err := s.lessons.GetByAssignmentID(ctx, assignment.ID)
	switch {
	case err == nil:
		if _, err := s.completion.EnsureLessonComplete(ctx, submission.UserID, lesson); err != nil {
			return nil, fmt.Errorf("failed to complete lesson: %w", err)
		}
	case !apperrors.Is(err, apperrors.KindNotFound):
		return nil, err
	}

	s.logger.Info("submission graded",
		zap.String("submission_id", submissionID),
		zap.Int("grader_id", graderID),
		zap.Int("marks", marks),
	)
	return s.repo.GetSubmissionByID(ctx, submissionID)
}

// GetSubmission returns a submission to its owner
func (s *assignmentService) GetSubmission(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error) {
	submission, err := s.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission.UserID != userID {
		return nil, apperrors.Authorization("submission belongs to another user")
	}
	return submission, nil
}

// GetSubmissionByAssignment returns the caller's submission for an assignment
func (s *assignmentService) GetSubmissionByAssignment(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error) {
	if _, err := s.repo.GetByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.repo.GetSubmissionByAssignmentAndUser(ctx, assignmentID, userID)
}
