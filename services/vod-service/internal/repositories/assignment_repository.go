package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type assignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB) *assignmentRepository {
	return &assignmentRepository{
		db: db,
	}
}

const submissionColumns = `id, assignment_id, user_id, storage_key, file_name, status, is_late, submitted_at,
	marks, feedback, graded_at, graded_by, created_at`

// GetByID retrieves an assignment by ID
func (r *assignmentRepository) GetByID(ctx context.Context, id int) (*models.Assignment, error) {
	query := `
		SELECT id, course_id, author_id, title, description, due_date, max_marks
		FROM assignments
		WHERE id = ?
		LIMIT 1
	`

	var (
		assignment  models.Assignment
		description sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&assignment.ID,
		&assignment.CourseID,
		&assignment.AuthorID,
		&assignment.Title,
		&description,
		&assignment.DueDate,
		&assignment.MaxMarks,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("assignment")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}

	assignment.Description = description.String
	return &assignment, nil
}

// CreateSubmission inserts a submission. The (assignment, user) unique key turns a second
// submission into a ConflictError atomically.
func (r *assignmentRepository) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	query := `
		INSERT INTO assignment_submissions (id, assignment_id, user_id, storage_key, file_name, status, is_late, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		submission.ID,
		submission.AssignmentID,
		submission.UserID,
		submission.StorageKey,
		submission.FileName,
		submission.Status,
		submission.IsLate,
		submission.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return apperrors.Conflict("a submission already exists for assignment %d", submission.AssignmentID)
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// GetSubmissionByID retrieves a submission by ID
func (r *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assignment_submissions WHERE id = ? LIMIT 1`
	return r.getSubmission(ctx, query, id)
}

// GetSubmissionByAssignmentAndUser retrieves the submission of a user for an assignment
func (r *assignmentRepository) GetSubmissionByAssignmentAndUser(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assignment_submissions WHERE assignment_id = ? AND user_id = ? LIMIT 1`
	return r.getSubmission(ctx, query, assignmentID, userID)
}

// MarkSubmitted moves a PENDING_UPLOAD submission to SUBMITTED.
// It returns false when the submission was not pending.
func (r *assignmentRepository) MarkSubmitted(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE assignment_submissions SET status = ?, submitted_at = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, models.SubmissionStatusSubmitted, at, id, models.SubmissionStatusPendingUpload)
	if err != nil {
		return false, fmt.Errorf("failed to mark submission submitted: %w", err)
	}

	return affected(result)
}

// Grade records the grading of a SUBMITTED submission. It returns false when the
// submission was not in SUBMITTED status, so a submission is graded at most once.
func (r *assignmentRepository) Grade(ctx context.Context, id string, marks int, feedback string, gradedBy int, at time.Time) (bool, error) {
	query := `
		UPDATE assignment_submissions
		SET status = ?, marks = ?, feedback = ?, graded_by = ?, graded_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		models.SubmissionStatusGraded,
		marks,
		emptyAsNull(feedback),
		gradedBy,
		at,
		id,
		models.SubmissionStatusSubmitted,
	)
	if err != nil {
		return false, fmt.Errorf("failed to grade submission: %w", err)
	}

	return affected(result)
}

func (r *assignmentRepository) getSubmission(ctx context.Context, query string, args ...any) (*models.AssignmentSubmission, error) {
	var (
		s           models.AssignmentSubmission
		submittedAt sql.NullTime
		marks       sql.NullInt64
		feedback    sql.NullString
		gradedAt    sql.NullTime
		gradedBy    sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&s.ID,
		&s.AssignmentID,
		&s.UserID,
		&s.StorageKey,
		&s.FileName,
		&s.Status,
		&s.IsLate,
		&submittedAt,
		&marks,
		&feedback,
		&gradedAt,
		&gradedBy,
		&s.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("submission")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	if submittedAt.Valid {
		s.SubmittedAt = &submittedAt.Time
	}
	if marks.Valid {
		m := int(marks.Int64)
		s.Marks = &m
	}
	s.Feedback = feedback.String
	if gradedAt.Valid {
		s.GradedAt = &gradedAt.Time
	}
	if gradedBy.Valid {
		g := int(gradedBy.Int64)
		s.GradedBy = &g
	}

	return &s, nil
}
