package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// QuizService defines quiz authoring and grading operations
type QuizService interface {
	CreateQuiz(ctx context.Context, req *models.CreateQuizRequest, authorID int, isAdmin bool) (*models.Quiz, error)
	// GetQuiz hides correct answers from callers who cannot edit the quiz.
	GetQuiz(ctx context.Context, quizID, callerID int, isAdmin bool) (*models.Quiz, error)
	SubmitQuiz(ctx context.Context, quizID, userID int, answers map[int]models.Answer) (*models.QuizSubmissionResult, error)
	ListAttempts(ctx context.Context, quizID, userID int) ([]models.QuizAttempt, error)
}

// QuizHandler handles quiz HTTP requests
type QuizHandler struct {
	handlers.BaseHandler
	quizService QuizService
	tutorMw     func(http.Handler) http.Handler
}

// NewQuizHandler creates a new quiz handler. tutorMw guards quiz creation.
func NewQuizHandler(quizService QuizService, tutorMw func(http.Handler) http.Handler, logger *zap.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: handlers.BaseHandler{Logger: logger},
		quizService: quizService,
		tutorMw:     tutorMw,
	}
}

// RegisterRoutes registers quiz routes
func (h *QuizHandler) RegisterRoutes(r chi.Router) {
	r.Route("/quizzes", func(r chi.Router) {
		r.With(h.tutorMw).Post("/", h.CreateQuiz)
		r.Get("/{id}", h.GetQuiz)
		r.Post("/{id}/submit", h.SubmitQuiz)
		r.Get("/{id}/attempts", h.ListAttempts)
	})
}

// CreateQuiz handles POST /quizzes
// @Summary Create a quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateQuizRequest true "Quiz definition"
// @Success 201 {object} models.Quiz
// @Failure 400 {object} map[string]string "Invalid quiz"
// @Failure 403 {object} map[string]string "Not the course author"
// @Failure 404 {object} map[string]string "Course not found"
// @Router /quizzes [post]
func (h *QuizHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}

	var req models.CreateQuizRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	quiz, err := h.quizService.CreateQuiz(r.Context(), &req, identity.UserID, identity.IsAdmin())
	if err != nil {
		h.RespondServiceError(w, err, "failed to create quiz", zap.Int("courseId", req.CourseID))
		return
	}

	h.RespondJSON(w, http.StatusCreated, quiz)
}

// GetQuiz handles GET /quizzes/{id}
// @Summary Get a quiz
// @Description Learners receive the quiz without correct answers
// @Tags quizzes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 200 {object} models.Quiz
// @Failure 404 {object} map[string]string "Quiz not found"
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	quizID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.GetQuiz(r.Context(), quizID, identity.UserID, identity.IsAdmin())
	if err != nil {
		h.RespondServiceError(w, err, "failed to get quiz", zap.Int("quizId", quizID))
		return
	}

	h.RespondJSON(w, http.StatusOK, quiz)
}

// SubmitQuiz handles POST /quizzes/{id}/submit
// @Summary Submit quiz answers
// @Description Grades the attempt; a passing score completes the quiz lesson
// @Tags quizzes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Param request body models.SubmitQuizRequest true "Answers by question id"
// @Success 200 {object} models.QuizSubmissionResult
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Quiz not found"
// @Router /quizzes/{id}/submit [post]
func (h *QuizHandler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	quizID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	var req models.SubmitQuizRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.quizService.SubmitQuiz(r.Context(), quizID, identity.UserID, req.Answers)
	if err != nil {
		h.RespondServiceError(w, err, "failed to submit quiz", zap.Int("quizId", quizID), zap.Int("userId", identity.UserID))
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// ListAttempts handles GET /quizzes/{id}/attempts
// @Summary List own attempts
// @Tags quizzes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Quiz ID"
// @Success 200 {array} models.QuizAttempt
// @Failure 404 {object} map[string]string "Quiz not found"
// @Router /quizzes/{id}/attempts [get]
func (h *QuizHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	quizID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	attempts, err := h.quizService.ListAttempts(r.Context(), quizID, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to list attempts", zap.Int("quizId", quizID))
		return
	}

	h.RespondJSON(w, http.StatusOK, attempts)
}
