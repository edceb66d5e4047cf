package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type lessonRepository struct {
	db *sql.DB
}

// NewLessonRepository creates a new lesson repository
func NewLessonRepository(db *sql.DB) *lessonRepository {
	return &lessonRepository{
		db: db,
	}
}

const lessonColumns = `id, course_id, module_id, title, lesson_order, kind, media_id, video_url, quiz_id, assignment_id, content`

// Create inserts a new lesson
func (r *lessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	query := `
		INSERT INTO lessons (course_id, module_id, title, lesson_order, kind, media_id, video_url, quiz_id, assignment_id, content)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	f := models.Fields(lesson.Content)
	result, err := r.db.ExecContext(ctx, query,
		lesson.CourseID,
		lesson.ModuleID,
		lesson.Title,
		lesson.Order,
		lesson.Kind(),
		nullString(f.MediaID),
		emptyAsNull(f.VideoURL),
		nullInt(f.QuizID),
		nullInt(f.AssignmentID),
		emptyAsNull(f.Body),
	)
	if err != nil {
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	lesson.ID = int(id)
	return nil
}

// UpdateContent replaces the kind and content columns of a lesson
func (r *lessonRepository) UpdateContent(ctx context.Context, id int, content models.LessonContent) error {
	query := `
		UPDATE lessons
		SET kind = ?, media_id = ?, video_url = ?, quiz_id = ?, assignment_id = ?, content = ?
		WHERE id = ?
	`

	f := models.Fields(content)
	_, err := r.db.ExecContext(ctx, query,
		content.Kind(),
		nullString(f.MediaID),
		emptyAsNull(f.VideoURL),
		nullInt(f.QuizID),
		nullInt(f.AssignmentID),
		emptyAsNull(f.Body),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update lesson content: %w", err)
	}

	return nil
}

// GetByID retrieves a lesson by ID
func (r *lessonRepository) GetByID(ctx context.Context, id int) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = ? LIMIT 1`
	return r.getOne(ctx, query, id)
}

// GetByQuizID retrieves the first lesson that is graded by the quiz
func (r *lessonRepository) GetByQuizID(ctx context.Context, quizID int) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE quiz_id = ? ORDER BY id ASC LIMIT 1`
	return r.getOne(ctx, query, quizID)
}

// GetByAssignmentID retrieves the first lesson that is graded by the assignment
func (r *lessonRepository) GetByAssignmentID(ctx context.Context, assignmentID int) (*models.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE assignment_id = ? ORDER BY id ASC LIMIT 1`
	return r.getOne(ctx, query, assignmentID)
}

// CountByCourse counts the lessons in every module of a course
func (r *lessonRepository) CountByCourse(ctx context.Context, courseID int) (int, error) {
	query := `
		SELECT COUNT(l.id)
		FROM lessons l
		INNER JOIN course_modules m ON m.id = l.module_id
		WHERE m.course_id = ?
	`

	var count int
	if err := r.db.QueryRowContext(ctx, query, courseID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}

	return count, nil
}

// ModuleBelongsToCourse checks that a module is part of the course
func (r *lessonRepository) ModuleBelongsToCourse(ctx context.Context, moduleID, courseID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM course_modules WHERE id = ? AND course_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, moduleID, courseID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check module: %w", err)
	}

	return exists, nil
}

func (r *lessonRepository) getOne(ctx context.Context, query string, arg any) (*models.Lesson, error) {
	lesson, err := scanLesson(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("lesson")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	return lesson, nil
}

func scanLesson(row rowScanner) (*models.Lesson, error) {
	var (
		lesson       models.Lesson
		kind         models.LessonKind
		mediaID      sql.NullString
		videoURL     sql.NullString
		quizID       sql.NullInt64
		assignmentID sql.NullInt64
		content      sql.NullString
	)

	err := row.Scan(
		&lesson.ID,
		&lesson.CourseID,
		&lesson.ModuleID,
		&lesson.Title,
		&lesson.Order,
		&kind,
		&mediaID,
		&videoURL,
		&quizID,
		&assignmentID,
		&content,
	)
	if err != nil {
		return nil, err
	}

	lesson.Content, err = contentFromRow(kind, mediaID, videoURL, quizID, assignmentID, content)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// contentFromRow rebuilds the content variant of a stored lesson. An unknown kind is an error.
// A VIDEO lesson whose media was deleted keeps only its legacy URL, which may be empty.
func contentFromRow(kind models.LessonKind, mediaID, videoURL sql.NullString, quizID, assignmentID sql.NullInt64, content sql.NullString) (models.LessonContent, error) {
	switch kind {
	case models.LessonKindVideo:
		c := models.VideoContent{LegacyURL: videoURL.String}
		if mediaID.Valid {
			id := mediaID.String
			c.MediaID = &id
		}
		return c, nil
	case models.LessonKindQuiz, models.LessonKindMCQ:
		return models.QuizContent{QuizID: int(quizID.Int64), MCQ: kind == models.LessonKindMCQ}, nil
	case models.LessonKindAssignment:
		return models.AssignmentContent{AssignmentID: int(assignmentID.Int64)}, nil
	case models.LessonKindArticle, models.LessonKindAR:
		return models.BodyContent{Body: content.String, AR: kind == models.LessonKindAR}, nil
	case models.LessonKindLive:
		return models.LiveContent{}, nil
	default:
		return nil, fmt.Errorf("unknown lesson kind %q", kind)
	}
}
