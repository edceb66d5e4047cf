package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// QuizRepository defines the interface for quiz data access
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id int) (*models.Quiz, error)
	CreateAttempt(ctx context.Context, attempt *models.QuizAttempt) error
	ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error)
}

// CourseRepository checks course existence and authorship
type CourseRepository interface {
	Exists(ctx context.Context, id int) (bool, error)
	CheckOwnership(ctx context.Context, id, tutorID int) (bool, error)
}

// QuizLessonFinder finds the lesson graded by a quiz
type QuizLessonFinder interface {
	GetByQuizID(ctx context.Context, quizID int) (*models.Lesson, error)
}

// LessonCompleter marks lessons complete for a user
type LessonCompleter interface {
	EnsureLessonComplete(ctx context.Context, userID int, lesson *models.Lesson) (bool, error)
}

type quizService struct {
	repo        QuizRepository
	courses     CourseRepository
	lessons     QuizLessonFinder
	enrollments EnrollmentFinder
	completion  LessonCompleter
	logger      *zap.Logger
	now         func() time.Time
}

// NewQuizService creates a new quiz grading service
func NewQuizService(
	repo QuizRepository,
	courses CourseRepository,
	lessons QuizLessonFinder,
	enrollments EnrollmentFinder,
	completion LessonCompleter,
	logger *zap.Logger,
) *quizService {
	return &quizService{
		repo:        repo,
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
		completion:  completion,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateQuiz validates and stores a quiz. Tutors may only add quizzes to their own courses.
func (s *quizService) CreateQuiz(ctx context.Context, req *models.CreateQuizRequest, authorID int, isAdmin bool) (*models.Quiz, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}
	if len(req.Questions) == 0 {
		return nil, apperrors.Validation("a quiz needs at least one question")
	}
	if req.PassingScore < 0 || req.PassingScore > 100 {
		return nil, apperrors.Validation("passingScore must be between 0 and 100")
	}

	questions := make([]models.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if err := validateQuestion(q); err != nil {
			return nil, apperrors.Validation("question %d: %s", i+1, err.Error())
		}
		answer := normalizeCorrectAnswer(q)
		questions = append(questions, models.Question{
			Type:          q.Type,
			Prompt:        strings.TrimSpace(q.Prompt),
			Points:        q.Points,
			Options:       q.Options,
			CorrectAnswer: &answer,
			Order:         i,
		})
	}

	if err := requireCourseAuthor(ctx, s.courses, req.CourseID, authorID, isAdmin); err != nil {
		return nil, err
	}

	quiz := &models.Quiz{
		CourseID:     req.CourseID,
		AuthorID:     authorID,
		Title:        title,
		PassingScore: req.PassingScore,
		Questions:    questions,
	}
	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, err
	}

	s.logger.Info("quiz created", zap.Int("quiz_id", quiz.ID), zap.Int("course_id", quiz.CourseID), zap.Int("questions", len(questions)))
	return quiz, nil
}

func validateQuestion(q models.CreateQuestionRequest) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if q.Points <= 0 {
		return errors.New("points must be positive")
	}

	optionIDs := make(map[string]bool, len(q.Options))
	for _, o := range q.Options {
		if o.ID == "" {
			return errors.New("option ids are required")
		}
		if optionIDs[o.ID] {
			return fmt.Errorf("option id %q is repeated", o.ID)
		}
		optionIDs[o.ID] = true
	}

	switch q.Type {
	case models.QuestionTypeSingleChoice:
		if len(q.Options) < 2 {
			return errors.New("single choice questions need at least two options")
		}
		if len(q.CorrectAnswer.Values) != 1 || !optionIDs[q.CorrectAnswer.Values[0]] {
			return errors.New("correctAnswer must be exactly one existing option id")
		}
	case models.QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return errors.New("multiple choice questions need at least two options")
		}
		if q.CorrectAnswer.IsEmpty() {
			return errors.New("correctAnswer must list at least one option id")
		}
		for _, v := range q.CorrectAnswer.Values {
			if !optionIDs[v] {
				return fmt.Errorf("correctAnswer references unknown option %q", v)
			}
		}
	case models.QuestionTypeTextAnswer:
		if len(q.CorrectAnswer.Values) != 1 || strings.TrimSpace(q.CorrectAnswer.Values[0]) == "" {
			return errors.New("correctAnswer must be a non-empty text")
		}
	default:
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	return nil
}

func normalizeCorrectAnswer(q models.CreateQuestionRequest) models.Answer {
	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		return models.ListAnswer(uniqueValues(q.CorrectAnswer.Values)...)
	case models.QuestionTypeTextAnswer:
		return models.SingleAnswer(strings.TrimSpace(q.CorrectAnswer.Values[0]))
	}
	return models.SingleAnswer(q.CorrectAnswer.Values[0])
}

// GradeQuiz scores answers against the quiz. Unanswered questions earn nothing.
func GradeQuiz(quiz *models.Quiz, answers map[int]models.Answer) (int, []models.QuestionResult) {
	results := make([]models.QuestionResult, 0, len(quiz.Questions))
	earned, total := 0, 0

	for _, q := range quiz.Questions {
		total += q.Points
		answer, ok := answers[q.ID]
		correct := ok && q.CorrectAnswer != nil && isCorrect(q.Type, *q.CorrectAnswer, answer)

		result := models.QuestionResult{QuestionID: q.ID, Correct: correct, Points: q.Points}
		if correct {
			result.EarnedPoints = q.Points
			earned += q.Points
		}
		results = append(results, result)
	}

	if total == 0 {
		return 0, results
	}
	return int(math.Round(float64(earned) / float64(total) * 100)), results
}

func isCorrect(qt models.QuestionType, expected, given models.Answer) bool {
	switch qt {
	case models.QuestionTypeSingleChoice:
		return len(given.Values) == 1 && len(expected.Values) == 1 && given.Values[0] == expected.Values[0]
	case models.QuestionTypeMultipleChoice:
		want, got := uniqueValues(expected.Values), uniqueValues(given.Values)
		if len(want) != len(got) {
			return false
		}
		set := make(map[string]bool, len(want))
		for _, v := range want {
			set[v] = true
		}
		for _, v := range got {
			if !set[v] {
				return false
			}
		}
		return true
	case models.QuestionTypeTextAnswer:
		return len(given.Values) == 1 && len(expected.Values) == 1 &&
			strings.EqualFold(strings.TrimSpace(given.Values[0]), strings.TrimSpace(expected.Values[0]))
	}
	return false
}

func uniqueValues(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// SubmitQuiz grades and records an attempt. A passing attempt completes the lesson graded by the quiz;
// failed attempts never undo an earlier completion.
func (s *quizService) SubmitQuiz(ctx context.Context, quizID, userID int, answers map[int]models.Answer) (*models.QuizSubmissionResult, error) {
	quiz, err := s.repo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}

	lesson, err := s.lessons.GetByQuizID(ctx, quizID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		lesson, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if lesson != nil {
		if err := requireEnrollment(ctx, s.enrollments, userID, lesson.CourseID); err != nil {
			return nil, err
		}
	}

	score, results := GradeQuiz(quiz, answers)
	attempt := &models.QuizAttempt{
		ID:        uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Answers:   answers,
		Score:     score,
		Passed:    score >= quiz.PassingScore,
		Results:   results,
		CreatedAt: s.now(),
	}
	if attempt.Answers == nil {
		attempt.Answers = map[int]models.Answer{}
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info("quiz attempt graded",
		zap.String("attempt_id", attempt.ID),
		zap.Int("quiz_id", quizID),
		zap.Int("user_id", userID),
		zap.Int("score", score),
		zap.Bool("passed", attempt.Passed),
	)

	if attempt.Passed && lesson != nil {
		if _, err := s.completion.EnsureLessonComplete(ctx, userID, lesson); err != nil {
			return nil, fmt.Errorf("failed to complete lesson: %w", err)
		}
	}

	return &models.QuizSubmissionResult{
		AttemptID: attempt.ID,
		Score:     score,
		Passed:    attempt.Passed,
		Results:   results,
	}, nil
}

// GetQuiz returns a quiz. Correct answers are only shown to the course author and admins.
func (s *quizService) GetQuiz(ctx context.Context, quizID, callerID int, isAdmin bool) (*models.Quiz, error) {
	quiz, err := s.repo.GetByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if isAdmin || quiz.AuthorID == callerID {
		return quiz, nil
	}

	owner, err := s.courses.CheckOwnership(ctx, quiz.CourseID, callerID)
	if err != nil {
		return nil, err
	}
	if owner {
		return quiz, nil
	}
	return quiz.WithoutAnswers(), nil
}

// ListAttempts returns the attempts of a user on a quiz, newest first
func (s *quizService) ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error) {
	if _, err := s.repo.GetByID(ctx, quizID); err != nil {
		return nil, err
	}
	return s.repo.ListAttempts(ctx, quizID, userID)
}

// requireCourseAuthor checks the course exists and, unless the caller is an admin, that the caller authored it
func requireCourseAuthor(ctx context.Context, courses CourseRepository, courseID, userID int, isAdmin bool) error {
	exists, err := courses.Exists(ctx, courseID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NotFound("course")
	}
	if isAdmin {
		return nil
	}

	owner, err := courses.CheckOwnership(ctx, courseID, userID)
	if err != nil {
		return err
	}
	if !owner {
		return apperrors.Authorization("course %d belongs to another tutor", courseID)
	}
	return nil
}
