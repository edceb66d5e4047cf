package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
)

type quizRepository struct {
	db *sql.DB
}

// NewQuizRepository creates a new quiz repository
func NewQuizRepository(db *sql.DB) *quizRepository {
	return &quizRepository{
		db: db,
	}
}

// Create inserts a quiz and its questions in one transaction
func (r *quizRepository) Create(ctx context.Context, quiz *models.Quiz) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO quizzes (course_id, author_id, title, passing_score) VALUES (?, ?, ?, ?)`,
		quiz.CourseID, quiz.AuthorID, quiz.Title, quiz.PassingScore,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz: %w", err)
	}

	quizID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	quiz.ID = int(quizID)

	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.QuizID = quiz.ID

		var options any
		if len(q.Options) > 0 {
			data, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			options = string(data)
		}
		correct, err := json.Marshal(q.CorrectAnswer)
		if err != nil {
			return fmt.Errorf("failed to encode correct answer: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_questions (quiz_id, type, prompt, points, options, correct_answer, question_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, q.QuizID, q.Type, q.Prompt, q.Points, options, string(correct), q.Order)
		if err != nil {
			return fmt.Errorf("failed to create quiz question: %w", err)
		}

		questionID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		q.ID = int(questionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quiz: %w", err)
	}

	return nil
}

// GetByID retrieves a quiz with its questions ordered by position
func (r *quizRepository) GetByID(ctx context.Context, id int) (*models.Quiz, error) {
	query := `
		SELECT id, course_id, author_id, title, passing_score, created_at
		FROM quizzes
		WHERE id = ?
		LIMIT 1
	`

	var quiz models.Quiz
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&quiz.ID,
		&quiz.CourseID,
		&quiz.AuthorID,
		&quiz.Title,
		&quiz.PassingScore,
		&quiz.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("quiz")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quiz_id, type, prompt, points, options, correct_answer, question_order
		FROM quiz_questions
		WHERE quiz_id = ?
		ORDER BY question_order ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	quiz.Questions = []models.Question{}
	for rows.Next() {
		var (
			q       models.Question
			options sql.NullString
			correct string
		)
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Type, &q.Prompt, &q.Points, &options, &correct, &q.Order); err != nil {
			return nil, fmt.Errorf("failed to scan quiz question: %w", err)
		}
		if options.Valid && options.String != "" {
			if err := json.Unmarshal([]byte(options.String), &q.Options); err != nil {
				return nil, fmt.Errorf("failed to decode options: %w", err)
			}
		}
		var answer models.Answer
		if err := json.Unmarshal([]byte(correct), &answer); err != nil {
			return nil, fmt.Errorf("failed to decode correct answer: %w", err)
		}
		q.CorrectAnswer = &answer
		quiz.Questions = append(quiz.Questions, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz questions: %w", err)
	}

	return &quiz, nil
}

// CreateAttempt appends a graded attempt
func (r *quizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	query := `
		INSERT INTO quiz_attempts (id, quiz_id, user_id, answers, score, passed, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}
	results, err := json.Marshal(attempt.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.QuizID,
		attempt.UserID,
		string(answers),
		attempt.Score,
		attempt.Passed,
		string(results),
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create quiz attempt: %w", err)
	}

	return nil
}

// ListAttempts returns a user's attempts on a quiz, newest first
func (r *quizRepository) ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error) {
	query := `
		SELECT id, quiz_id, user_id, answers, score, passed, results, created_at
		FROM quiz_attempts
		WHERE quiz_id = ? AND user_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, quizID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.QuizAttempt{}
	for rows.Next() {
		var (
			attempt models.QuizAttempt
			answers string
			results string
		)
		if err := rows.Scan(&attempt.ID, &attempt.QuizID, &attempt.UserID, &answers, &attempt.Score, &attempt.Passed, &results, &attempt.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan quiz attempt: %w", err)
		}
		if err := json.Unmarshal([]byte(answers), &attempt.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &attempt.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
		attempts = append(attempts, attempt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quiz attempts: %w", err)
	}

	return attempts, nil
}
