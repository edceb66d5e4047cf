package services

import (
	"context"

	"github.com/learnhub/backend/libs/apperrors"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// LessonRepository defines the interface for lesson data access
type LessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	UpdateContent(ctx context.Context, id int, content models.LessonContent) error
	GetByID(ctx context.Context, id int) (*models.Lesson, error)
	ModuleBelongsToCourse(ctx context.Context, moduleID, courseID int) (bool, error)
}

// QuizGetter resolves quizzes referenced by lessons
type QuizGetter interface {
	GetByID(ctx context.Context, id int) (*models.Quiz, error)
}

// AssignmentGetter resolves assignments referenced by lessons
type AssignmentGetter interface {
	GetByID(ctx context.Context, id int) (*models.Assignment, error)
}

type lessonService struct {
	repo        LessonRepository
	courses     CourseRepository
	media       MediaGetter
	quizzes     QuizGetter
	assignments AssignmentGetter
	logger      *zap.Logger
}

// NewLessonService creates a new lesson service
func NewLessonService(
	repo LessonRepository,
	courses CourseRepository,
	media MediaGetter,
	quizzes QuizGetter,
	assignments AssignmentGetter,
	logger *zap.Logger,
) *lessonService {
	return &lessonService{
		repo:        repo,
		courses:     courses,
		media:       media,
		quizzes:     quizzes,
		assignments: assignments,
		logger:      logger,
	}
}

// CreateLesson adds a lesson to a module of a course the caller authors
func (s *lessonService) CreateLesson(ctx context.Context, req *models.CreateLessonRequest, callerID int, isAdmin bool) (*models.Lesson, error) {
	content, err := models.NewLessonContent(req.Kind, req.ContentInput())
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}
	if err := requireCourseAuthor(ctx, s.courses, req.CourseID, callerID, isAdmin); err != nil {
		return nil, err
	}

	inCourse, err := s.repo.ModuleBelongsToCourse(ctx, req.ModuleID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !inCourse {
		return nil, apperrors.Validation("module %d is not part of course %d", req.ModuleID, req.CourseID)
	}
	if err := s.checkReferences(ctx, req.CourseID, content); err != nil {
		return nil, err
	}

	lesson := &models.Lesson{
		CourseID: req.CourseID,
		ModuleID: req.ModuleID,
		Title:    req.Title,
		Order:    req.Order,
		Content:  content,
	}
	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, err
	}

	s.logger.Info("lesson created", zap.Int("lesson_id", lesson.ID), zap.Int("course_id", lesson.CourseID), zap.String("kind", string(lesson.Kind())))
	return lesson, nil
}

// UpdateContent replaces the kind and content of a lesson
func (s *lessonService) UpdateContent(ctx context.Context, lessonID int, req *models.UpdateLessonContentRequest, callerID int, isAdmin bool) (*models.Lesson, error) {
	content, err := models.NewLessonContent(req.Kind, req.ContentInput())
	if err != nil {
		return nil, apperrors.Validation("%s", err.Error())
	}

	lesson, err := s.repo.GetByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if err := requireCourseAuthor(ctx, s.courses, lesson.CourseID, callerID, isAdmin); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, lesson.CourseID, content); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateContent(ctx, lessonID, content); err != nil {
		return nil, err
	}
	lesson.Content = content
	return lesson, nil
}

// checkReferences makes sure the media, quiz or assignment a lesson points at exists.
// Quizzes and assignments must belong to the lesson's course.
func (s *lessonService) checkReferences(ctx context.Context, courseID int, content models.LessonContent) error {
	switch c := content.(type) {
	case models.VideoContent:
		if c.MediaID == nil {
			return nil
		}
		media, err := s.media.GetMedia(ctx, *c.MediaID)
		if err != nil {
			return err
		}
		if !media.IsVideo() {
			return apperrors.Validation("media %s is not a video", media.ID)
		}
	case models.QuizContent:
		quiz, err := s.quizzes.GetByID(ctx, c.QuizID)
		if err != nil {
			return err
		}
		if quiz.CourseID != courseID {
			return apperrors.Validation("quiz %d belongs to another course", c.QuizID)
		}
	case models.AssignmentContent:
		assignment, err := s.assignments.GetByID(ctx, c.AssignmentID)
		if err != nil {
			return err
		}
		if assignment.CourseID != courseID {
			return apperrors.Validation("assignment %d belongs to another course", c.AssignmentID)
		}
	}
	return nil
}
