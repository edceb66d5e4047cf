package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// LessonReader resolves lessons and counts them per course
type LessonReader interface {
	GetByID(ctx context.Context, id int) (*models.Lesson, error)
	CountByCourse(ctx context.Context, courseID int) (int, error)
}

// ProgressRepository defines the interface for per-lesson progress data access
type ProgressRepository interface {
	MarkComplete(ctx context.Context, userID, lessonID, courseID int, at time.Time) error
	AddTimeSpent(ctx context.Context, userID, lessonID, courseID, seconds int) error
	// GetByUserAndLesson returns nil without error when no row exists
	GetByUserAndLesson(ctx context.Context, userID, lessonID int) (*models.CourseProgress, error)
	CountCompletedByCourse(ctx context.Context, userID, courseID int) (int, error)
}

// EnrollmentRepository defines the interface for enrollment data access
type EnrollmentRepository interface {
	GetByUserAndCourse(ctx context.Context, userID, courseID int) (*models.Enrollment, error)
	UpdateCompletion(ctx context.Context, id int, percentage float64, status models.EnrollmentStatus, now time.Time) error
}

// completionService is the single place where lesson completions turn into course progress
type completionService struct {
	lessons     LessonReader
	progress    ProgressRepository
	enrollments EnrollmentRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewCompletionService creates a new completion aggregator
func NewCompletionService(lessons LessonReader, progress ProgressRepository, enrollments EnrollmentRepository, logger *zap.Logger) *completionService {
	return &completionService{
		lessons:     lessons,
		progress:    progress,
		enrollments: enrollments,
		logger:      logger,
		now:         time.Now,
	}
}

// CompletionPercentage returns completed/total as a percentage in [0, 100] rounded to two decimals
func CompletionPercentage(completed, total int) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return math.Round(float64(completed)/float64(total)*10000) / 100
}

// MarkComplete records the lesson as completed for the user and recomputes the course completion.
// It is idempotent.
func (s *completionService) MarkComplete(ctx context.Context, userID, lessonID int) (*models.CourseCompletion, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, lesson)
}

// MarkLessonComplete is the manual completion action. The user needs an entitled enrollment in the lesson's course.
func (s *completionService) MarkLessonComplete(ctx context.Context, userID, lessonID int) (*models.CourseCompletion, error) {
	lesson, err := s.lessons.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := requireEnrollment(ctx, s.enrollments, userID, lesson.CourseID); err != nil {
		return nil, err
	}
	return s.complete(ctx, userID, lesson)
}

// EnsureLessonComplete marks the lesson complete unless it already is.
// It reports whether this call completed the lesson.
func (s *completionService) EnsureLessonComplete(ctx context.Context, userID int, lesson *models.Lesson) (bool, error) {
	existing, err := s.progress.GetByUserAndLesson(ctx, userID, lesson.ID)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Completed {
		return false, nil
	}
	if _, err := s.complete(ctx, userID, lesson); err != nil {
		return false, err
	}
	return true, nil
}

func (s *completionService) complete(ctx context.Context, userID int, lesson *models.Lesson) (*models.CourseCompletion, error) {
	if err := s.progress.MarkComplete(ctx, userID, lesson.ID, lesson.CourseID, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("lesson completed",
		zap.Int("user_id", userID),
		zap.Int("lesson_id", lesson.ID),
		zap.Int("course_id", lesson.CourseID),
		zap.String("kind", string(lesson.Kind())),
	)

	return s.CalculateCourseCompletion(ctx, userID, lesson.CourseID)
}

// CalculateCourseCompletion recomputes the completion percentage of a user in a course and stores it
// on the enrollment. An ACTIVE enrollment at 100% becomes COMPLETED. COMPLETED is never downgraded
// and CANCELLED or EXPIRED enrollments are left untouched.
func (s *completionService) CalculateCourseCompletion(ctx context.Context, userID, courseID int) (*models.CourseCompletion, error) {
	total, err := s.lessons.CountByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	completed, err := s.progress.CountCompletedByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	result := &models.CourseCompletion{
		UserID:               userID,
		CourseID:             courseID,
		CompletedLessons:     completed,
		TotalLessons:         total,
		CompletionPercentage: CompletionPercentage(completed, total),
	}

	enrollment, err := s.enrollments.GetByUserAndCourse(ctx, userID, courseID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	result.Status = enrollment.Status
	switch enrollment.Status {
	case models.EnrollmentStatusCancelled, models.EnrollmentStatusExpired:
		result.CompletionPercentage = enrollment.CompletionPercentage
		return result, nil
	case models.EnrollmentStatusActive:
		if result.CompletionPercentage >= 100 {
			result.Status = models.EnrollmentStatusCompleted
		}
	}

	if err := s.enrollments.UpdateCompletion(ctx, enrollment.ID, result.CompletionPercentage, result.Status, s.now()); err != nil {
		return nil, err
	}

	if result.Status == models.EnrollmentStatusCompleted && enrollment.Status != models.EnrollmentStatusCompleted {
		s.logger.Info("course completed", zap.Int("user_id", userID), zap.Int("course_id", courseID))
	}
	return result, nil
}

// RecordTimeSpent adds watch time to the lesson progress. Non-positive values are ignored.
func (s *completionService) RecordTimeSpent(ctx context.Context, userID int, lesson *models.Lesson, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	if err := s.progress.AddTimeSpent(ctx, userID, lesson.ID, lesson.CourseID, seconds); err != nil {
		return fmt.Errorf("failed to record time spent: %w", err)
	}
	return nil
}

// EnrollmentFinder looks up a user's enrollment in a course
type EnrollmentFinder interface {
	GetByUserAndCourse(ctx context.Context, userID, courseID int) (*models.Enrollment, error)
}

// requireEnrollment returns an authorization error unless the user holds an ACTIVE or COMPLETED enrollment
func requireEnrollment(ctx context.Context, enrollments EnrollmentFinder, userID, courseID int) error {
	enrollment, err := enrollments.GetByUserAndCourse(ctx, userID, courseID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return apperrors.Authorization("user %d is not enrolled in course %d", userID, courseID)
	}
	if err != nil {
		return err
	}
	if !enrollment.IsEntitled() {
		return apperrors.Authorization("enrollment in course %d is %s", courseID, enrollment.Status)
	}
	return nil
}
