package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type courseProgressRepository struct {
	db *sql.DB
}

// NewCourseProgressRepository creates a new course progress repository
func NewCourseProgressRepository(db *sql.DB) *courseProgressRepository {
	return &courseProgressRepository{
		db: db,
	}
}

// MarkComplete upserts the (user, lesson) row as completed. Repeated calls keep the first completion time.
func (r *courseProgressRepository) MarkComplete(ctx context.Context, userID, lessonID, courseID int, at time.Time) error {
	query := `
		INSERT INTO course_progress (user_id, lesson_id, course_id, completed, completed_at)
		VALUES (?, ?, ?, TRUE, ?)
		ON DUPLICATE KEY UPDATE
			completed_at = COALESCE(completed_at, VALUES(completed_at)),
			completed = TRUE
	`

	if _, err := r.db.ExecContext(ctx, query, userID, lessonID, courseID, at); err != nil {
		return fmt.Errorf("failed to mark lesson complete: %w", err)
	}

	return nil
}

// AddTimeSpent adds seconds to the time spent on a lesson, creating the row when needed
func (r *courseProgressRepository) AddTimeSpent(ctx context.Context, userID, lessonID, courseID, seconds int) error {
	query := `
		INSERT INTO course_progress (user_id, lesson_id, course_id, time_spent_seconds)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE time_spent_seconds = time_spent_seconds + VALUES(time_spent_seconds)
	`

	if _, err := r.db.ExecContext(ctx, query, userID, lessonID, courseID, seconds); err != nil {
		return fmt.Errorf("failed to add time spent: %w", err)
	}

	return nil
}

// GetByUserAndLesson retrieves the progress row of a user on a lesson, or nil when none exists
func (r *courseProgressRepository) GetByUserAndLesson(ctx context.Context, userID, lessonID int) (*models.CourseProgress, error) {
	query := `
		SELECT id, user_id, lesson_id, course_id, completed, completed_at, time_spent_seconds
		FROM course_progress
		WHERE user_id = ? AND lesson_id = ?
		LIMIT 1
	`

	var (
		progress    models.CourseProgress
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID, lessonID).Scan(
		&progress.ID,
		&progress.UserID,
		&progress.LessonID,
		&progress.CourseID,
		&progress.Completed,
		&completedAt,
		&progress.TimeSpentSeconds,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get course progress: %w", err)
	}

	if completedAt.Valid {
		progress.CompletedAt = &completedAt.Time
	}
	return &progress, nil
}

// CountCompletedByCourse counts completed lessons of a user across every module of a course
func (r *courseProgressRepository) CountCompletedByCourse(ctx context.Context, userID, courseID int) (int, error) {
	query := `
		SELECT COUNT(DISTINCT p.lesson_id)
		FROM course_progress p
		INNER JOIN lessons l ON l.id = p.lesson_id
		INNER JOIN course_modules m ON m.id = l.module_id
		WHERE p.user_id = ? AND m.course_id = ? AND p.completed = TRUE
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}

	return count, nil
}
