package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB) *enrollmentRepository {
	return &enrollmentRepository{
		db: db,
	}
}

// GetByUserAndCourse retrieves the enrollment of a user in a course
func (r *enrollmentRepository) GetByUserAndCourse(ctx context.Context, userID, courseID int) (*models.Enrollment, error) {
	query := `
		SELECT id, user_id, course_id, status, completion_percentage, enrolled_at, completed_at
		FROM enrollments
		WHERE user_id = ? AND course_id = ?
		LIMIT 1
	`

	var (
		enrollment  models.Enrollment
		completedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID, courseID).Scan(
		&enrollment.ID,
		&enrollment.UserID,
		&enrollment.CourseID,
		&enrollment.Status,
		&enrollment.CompletionPercentage,
		&enrollment.EnrolledAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("enrollment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}

	if completedAt.Valid {
		enrollment.CompletedAt = &completedAt.Time
	}
	return &enrollment, nil
}

// UpdateCompletion stores the recomputed percentage and status.
// completed_at is set on the first move to COMPLETED and kept afterwards.
func (r *enrollmentRepository) UpdateCompletion(ctx context.Context, id int, percentage float64, status models.EnrollmentStatus, now time.Time) error {
	query := `
		UPDATE enrollments
		SET completion_percentage = ?,
			completed_at = CASE WHEN ? = 'COMPLETED' THEN COALESCE(completed_at, ?) ELSE completed_at END,
			status = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query, percentage, status, now, status, id)
	if err != nil {
		return fmt.Errorf("failed to update enrollment completion: %w", err)
	}

	return nil
}
