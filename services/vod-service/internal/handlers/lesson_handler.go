package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// LessonService defines lesson authoring operations
type LessonService interface {
	CreateLesson(ctx context.Context, req *models.CreateLessonRequest, callerID int, isAdmin bool) (*models.Lesson, error)
	UpdateContent(ctx context.Context, lessonID int, req *models.UpdateLessonContentRequest, callerID int, isAdmin bool) (*models.Lesson, error)
}

// CompletionService defines learner progress operations
type CompletionService interface {
	// MarkLessonComplete records a manual completion for an enrolled learner.
	MarkLessonComplete(ctx context.Context, userID, lessonID int) (*models.CourseCompletion, error)
	CalculateCourseCompletion(ctx context.Context, userID, courseID int) (*models.CourseCompletion, error)
}

// LessonHandler handles lesson authoring and completion HTTP requests
type LessonHandler struct {
	handlers.BaseHandler
	lessonService     LessonService
	completionService CompletionService
	tutorMw           func(http.Handler) http.Handler
}

// NewLessonHandler creates a new lesson handler. tutorMw guards authoring routes.
func NewLessonHandler(lessonService LessonService, completionService CompletionService, tutorMw func(http.Handler) http.Handler, logger *zap.Logger) *LessonHandler {
	return &LessonHandler{
		BaseHandler:       handlers.BaseHandler{Logger: logger},
		lessonService:     lessonService,
		completionService: completionService,
		tutorMw:           tutorMw,
	}
}

// RegisterRoutes registers lesson and course completion routes
func (h *LessonHandler) RegisterRoutes(r chi.Router) {
	r.Route("/lessons", func(r chi.Router) {
		r.With(h.tutorMw).Post("/", h.CreateLesson)
		r.With(h.tutorMw).Put("/{id}/content", h.UpdateContent)
		r.Post("/{id}/complete", h.MarkComplete)
	})
	r.Get("/courses/{id}/completion", h.GetCourseCompletion)
}

// CreateLesson handles POST /lessons
// @Summary Create a lesson
// @Description The lesson kind decides which reference is required: media or legacy URL for VIDEO, quiz for QUIZ and MCQ, assignment for ASSIGNMENT
// @Tags lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateLessonRequest true "Lesson"
// @Success 201 {object} models.Lesson
// @Failure 400 {object} map[string]string "Invalid lesson content"
// @Failure 403 {object} map[string]string "Not the course author"
// @Failure 404 {object} map[string]string "Course or referenced item not found"
// @Router /lessons [post]
func (h *LessonHandler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}

	var req models.CreateLessonRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	lesson, err := h.lessonService.CreateLesson(r.Context(), &req, identity.UserID, identity.IsAdmin())
	if err != nil {
		h.RespondServiceError(w, err, "failed to create lesson", zap.Int("courseId", req.CourseID))
		return
	}

	h.RespondJSON(w, http.StatusCreated, lesson)
}

// UpdateContent handles PUT /lessons/{id}/content
// @Summary Replace lesson content
// @Tags lessons
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Param request body models.UpdateLessonContentRequest true "Content"
// @Success 200 {object} models.Lesson
// @Failure 400 {object} map[string]string "Invalid lesson content"
// @Failure 403 {object} map[string]string "Not the course author"
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /lessons/{id}/content [put]
func (h *LessonHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	lessonID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	var req models.UpdateLessonContentRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	lesson, err := h.lessonService.UpdateContent(r.Context(), lessonID, &req, identity.UserID, identity.IsAdmin())
	if err != nil {
		h.RespondServiceError(w, err, "failed to update lesson content", zap.Int("lessonId", lessonID))
		return
	}

	h.RespondJSON(w, http.StatusOK, lesson)
}

// MarkComplete handles POST /lessons/{id}/complete
// @Summary Mark a lesson complete
// @Description Idempotent; returns the recalculated course completion
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Param id path int true "Lesson ID"
// @Success 200 {object} models.CourseCompletion
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Lesson not found"
// @Router /lessons/{id}/complete [post]
func (h *LessonHandler) MarkComplete(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	lessonID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	completion, err := h.completionService.MarkLessonComplete(r.Context(), identity.UserID, lessonID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to mark lesson complete", zap.Int("lessonId", lessonID), zap.Int("userId", identity.UserID))
		return
	}

	h.RespondJSON(w, http.StatusOK, completion)
}

// GetCourseCompletion handles GET /courses/{id}/completion
// @Summary Get own course completion
// @Tags progress
// @Produce json
// @Security BearerAuth
// @Param id path int true "Course ID"
// @Success 200 {object} models.CourseCompletion
// @Router /courses/{id}/completion [get]
func (h *LessonHandler) GetCourseCompletion(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	courseID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	completion, err := h.completionService.CalculateCourseCompletion(r.Context(), identity.UserID, courseID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to calculate course completion", zap.Int("courseId", courseID))
		return
	}

	h.RespondJSON(w, http.StatusOK, completion)
}
