package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

type courseRepository struct {
	db *sql.DB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *sql.DB) *courseRepository {
	return &courseRepository{
		db: db,
	}
}

// Exists checks that a course exists
func (r *courseRepository) Exists(ctx context.Context, id int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM courses WHERE id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check course existence: %w", err)
	}

	return exists, nil
}

// CheckOwnership checks if a course belongs to a tutor
func (r *courseRepository) CheckOwnership(ctx context.Context, id, tutorID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM courses WHERE id = ? AND author_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id, tutorID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check course ownership: %w", err)
	}

	return exists, nil
}
