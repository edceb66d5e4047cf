package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// AssignmentService defines assignment submission and grading operations
type AssignmentService interface {
	GenerateSubmissionUpload(ctx context.Context, assignmentID, userID int, fileName string) (*models.SubmissionGrant, error)
	CompleteSubmissionUpload(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error)
	GradeSubmission(ctx context.Context, submissionID string, graderID int, isAdmin bool, marks int, feedback string) (*models.AssignmentSubmission, error)
	GetSubmission(ctx context.Context, submissionID string, userID int) (*models.AssignmentSubmission, error)
	GetSubmissionByAssignment(ctx context.Context, assignmentID, userID int) (*models.AssignmentSubmission, error)
}

// AssignmentHandler handles assignment HTTP requests
type AssignmentHandler struct {
	handlers.BaseHandler
	assignmentService AssignmentService
	tutorMw           func(http.Handler) http.Handler
}

// NewAssignmentHandler creates a new assignment handler. tutorMw guards grading.
func NewAssignmentHandler(assignmentService AssignmentService, tutorMw func(http.Handler) http.Handler, logger *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		BaseHandler:       handlers.BaseHandler{Logger: logger},
		assignmentService: assignmentService,
		tutorMw:           tutorMw,
	}
}

// RegisterRoutes registers assignment routes
func (h *AssignmentHandler) RegisterRoutes(r chi.Router) {
	r.Route("/assignments", func(r chi.Router) {
		r.Post("/{id}/presign", h.PresignSubmission)
		r.Get("/{id}/submission", h.GetOwnSubmission)
		r.Route("/submissions/{id}", func(r chi.Router) {
			r.Post("/complete", h.CompleteSubmission)
			r.Get("/", h.GetSubmission)
			r.With(h.tutorMw).Post("/grade", h.GradeSubmission)
		})
	})
}

// PresignSubmission handles POST /assignments/{id}/presign
// @Summary Request a submission upload URL
// @Description Creates the learner's single submission for the assignment; lateness is fixed at this moment. A submission still waiting for its file gets a fresh URL.
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Param request body models.SubmissionUploadRequest true "File to submit"
// @Success 201 {object} models.SubmissionGrant
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Assignment not found"
// @Failure 409 {object} map[string]string "Already submitted"
// @Router /assignments/{id}/presign [post]
func (h *AssignmentHandler) PresignSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	assignmentID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	var req models.SubmissionUploadRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	grant, err := h.assignmentService.GenerateSubmissionUpload(r.Context(), assignmentID, identity.UserID, req.FileName)
	if err != nil {
		h.RespondServiceError(w, err, "failed to grant submission upload",
			zap.Int("assignmentId", assignmentID), zap.Int("userId", identity.UserID))
		return
	}

	h.RespondJSON(w, http.StatusCreated, grant)
}

// CompleteSubmission handles POST /assignments/submissions/{id}/complete
// @Summary Finalize a submission upload
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} models.AssignmentSubmission
// @Failure 400 {object} map[string]string "File not uploaded"
// @Failure 403 {object} map[string]string "Not the submitter"
// @Failure 404 {object} map[string]string "Submission not found"
// @Router /assignments/submissions/{id}/complete [post]
func (h *AssignmentHandler) CompleteSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	submissionID := chi.URLParam(r, "id")

	submission, err := h.assignmentService.CompleteSubmissionUpload(r.Context(), submissionID, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to complete submission", zap.String("submissionId", submissionID))
		return
	}

	h.RespondJSON(w, http.StatusOK, submission)
}

// GetSubmission handles GET /assignments/submissions/{id}
// @Summary Get a submission
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} models.AssignmentSubmission
// @Failure 403 {object} map[string]string "Not the submitter"
// @Failure 404 {object} map[string]string "Submission not found"
// @Router /assignments/submissions/{id} [get]
func (h *AssignmentHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	submissionID := chi.URLParam(r, "id")

	submission, err := h.assignmentService.GetSubmission(r.Context(), submissionID, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to get submission", zap.String("submissionId", submissionID))
		return
	}

	h.RespondJSON(w, http.StatusOK, submission)
}

// GetOwnSubmission handles GET /assignments/{id}/submission
// @Summary Get own submission for an assignment
// @Tags assignments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Assignment ID"
// @Success 200 {object} models.AssignmentSubmission
// @Failure 404 {object} map[string]string "No submission yet"
// @Router /assignments/{id}/submission [get]
func (h *AssignmentHandler) GetOwnSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	assignmentID, ok := intParam(&h.BaseHandler, w, r, "id")
	if !ok {
		return
	}

	submission, err := h.assignmentService.GetSubmissionByAssignment(r.Context(), assignmentID, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to get submission", zap.Int("assignmentId", assignmentID))
		return
	}

	h.RespondJSON(w, http.StatusOK, submission)
}

// GradeSubmission handles POST /assignments/submissions/{id}/grade
// @Summary Grade a submission
// @Description Grading completes the assignment lesson for the learner
// @Tags assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param request body models.GradeSubmissionRequest true "Grade"
// @Success 200 {object} models.AssignmentSubmission
// @Failure 400 {object} map[string]string "Marks out of range"
// @Failure 403 {object} map[string]string "Not the course author"
// @Failure 409 {object} map[string]string "Already graded or upload incomplete"
// @Router /assignments/submissions/{id}/grade [post]
func (h *AssignmentHandler) GradeSubmission(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	submissionID := chi.URLParam(r, "id")

	var req models.GradeSubmissionRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	submission, err := h.assignmentService.GradeSubmission(r.Context(), submissionID, identity.UserID, identity.IsAdmin(), *req.Marks, req.Feedback)
	if err != nil {
		h.RespondServiceError(w, err, "failed to grade submission", zap.String("submissionId", submissionID))
		return
	}

	h.RespondJSON(w, http.StatusOK, submission)
}
