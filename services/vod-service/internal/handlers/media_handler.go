package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// MediaService defines the media registry operations used over HTTP
type MediaService interface {
	// GrantUpload validates the declared file and returns a pre-signed upload URL.
	GrantUpload(ctx context.Context, fileName, mimeType string, fileSize int64, uploaderID int) (*models.UploadGrant, error)
	// CompleteUpload verifies the uploaded object and starts processing.
	CompleteUpload(ctx context.Context, mediaID string, uploaderID int) (*models.Media, error)
	GetMedia(ctx context.Context, mediaID string) (*models.Media, error)
	// Delete removes the media record and every blob stored under its prefix.
	Delete(ctx context.Context, mediaID string, callerID int, isAdmin bool) error
	ListJobLogs(ctx context.Context, mediaID string) ([]models.TranscodeJobLog, error)
}

// TranscodeService defines transcode orchestration operations used over HTTP
type TranscodeService interface {
	// HandleResult applies a worker-reported job outcome. Duplicates are no-ops.
	HandleResult(ctx context.Context, result *models.TranscodeResult) error
	// Retry re-enqueues a FAILED video.
	Retry(ctx context.Context, mediaID string) (*models.TranscodeJobLog, error)
}

// MediaHandler handles media registry HTTP requests
type MediaHandler struct {
	handlers.BaseHandler
	mediaService     MediaService
	transcodeService TranscodeService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService MediaService, transcodeService TranscodeService, logger *zap.Logger) *MediaHandler {
	return &MediaHandler{
		BaseHandler:      handlers.BaseHandler{Logger: logger},
		mediaService:     mediaService,
		transcodeService: transcodeService,
	}
}

// RegisterRoutes registers authenticated tutor routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Route("/media", func(r chi.Router) {
		r.Post("/presign", h.Presign)
		r.Post("/complete", h.CompleteUpload)
		r.Get("/{id}", h.GetMedia)
		r.Delete("/{id}", h.DeleteMedia)
	})
}

// RegisterAdminRoutes registers operator routes
func (h *MediaHandler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/admin/media/{id}", func(r chi.Router) {
		r.Get("/jobs", h.ListJobLogs)
		r.Post("/transcode/retry", h.RetryTranscode)
	})
}

// RegisterInternalRoutes registers service-to-service routes
func (h *MediaHandler) RegisterInternalRoutes(r chi.Router) {
	r.Post("/internal/transcode/callback", h.TranscodeCallback)
}

// Presign handles POST /media/presign
// @Summary Request an upload URL
// @Description Validates file name, mime type and size, then returns a pre-signed PUT URL and the new media id
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PresignUploadRequest true "File to upload"
// @Success 201 {object} models.UploadGrant
// @Failure 400 {object} map[string]string "Invalid file"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media/presign [post]
func (h *MediaHandler) Presign(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}

	var req models.PresignUploadRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	grant, err := h.mediaService.GrantUpload(r.Context(), req.FileName, req.MimeType, req.FileSize, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to grant upload", zap.String("fileName", req.FileName))
		return
	}

	h.RespondJSON(w, http.StatusCreated, grant)
}

// CompleteUpload handles POST /media/complete
// @Summary Finalize an upload
// @Description Verifies the uploaded object and starts transcoding for videos. Repeated calls return the current record.
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CompleteUploadRequest true "Media to finalize"
// @Success 200 {object} models.Media
// @Failure 400 {object} map[string]string "Object missing or invalid"
// @Failure 403 {object} map[string]string "Not the uploader"
// @Failure 404 {object} map[string]string "Media not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media/complete [post]
func (h *MediaHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}

	var req models.CompleteUploadRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	media, err := h.mediaService.CompleteUpload(r.Context(), req.MediaID, identity.UserID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to complete upload", zap.String("mediaId", req.MediaID))
		return
	}

	h.RespondJSON(w, http.StatusOK, media)
}

// GetMedia handles GET /media/{id}
// @Summary Get media
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {object} models.Media
// @Failure 404 {object} map[string]string "Media not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media/{id} [get]
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	media, err := h.mediaService.GetMedia(r.Context(), id)
	if err != nil {
		h.RespondServiceError(w, err, "failed to get media", zap.String("mediaId", id))
		return
	}

	h.RespondJSON(w, http.StatusOK, media)
}

// DeleteMedia handles DELETE /media/{id}
// @Summary Delete media
// @Description Removes the record and purges the original and all derived outputs
// @Tags media
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 204 "Deleted"
// @Failure 403 {object} map[string]string "Not the uploader"
// @Failure 404 {object} map[string]string "Media not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /media/{id} [delete]
func (h *MediaHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.mediaService.Delete(r.Context(), id, identity.UserID, identity.IsAdmin()); err != nil {
		h.RespondServiceError(w, err, "failed to delete media", zap.String("mediaId", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListJobLogs handles GET /admin/media/{id}/jobs
// @Summary List transcode attempts
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {array} models.TranscodeJobLog
// @Failure 404 {object} map[string]string "Media not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/media/{id}/jobs [get]
func (h *MediaHandler) ListJobLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	logs, err := h.mediaService.ListJobLogs(r.Context(), id)
	if err != nil {
		h.RespondServiceError(w, err, "failed to list transcode jobs", zap.String("mediaId", id))
		return
	}

	h.RespondJSON(w, http.StatusOK, logs)
}

// RetryTranscode handles POST /admin/media/{id}/transcode/retry
// @Summary Retry a failed transcode
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 202 {object} models.TranscodeJobLog
// @Failure 404 {object} map[string]string "Media not found"
// @Failure 409 {object} map[string]string "Media is not FAILED"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/media/{id}/transcode/retry [post]
func (h *MediaHandler) RetryTranscode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.transcodeService.Retry(r.Context(), id)
	if err != nil {
		h.RespondServiceError(w, err, "failed to retry transcode", zap.String("mediaId", id))
		return
	}

	h.RespondJSON(w, http.StatusAccepted, job)
}

// TranscodeCallback handles POST /internal/transcode/callback
// @Summary Report a transcode outcome
// @Description Called by the transcode worker. Duplicate and late results are accepted and ignored.
// @Tags internal
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.TranscodeResult true "Job outcome"
// @Success 204 "Applied"
// @Failure 400 {object} map[string]string "Invalid result"
// @Failure 401 {object} map[string]string "Invalid API key"
// @Failure 404 {object} map[string]string "Unknown job"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /internal/transcode/callback [post]
func (h *MediaHandler) TranscodeCallback(w http.ResponseWriter, r *http.Request) {
	var result models.TranscodeResult
	if !h.DecodeJSON(w, r, &result) {
		return
	}

	if err := h.transcodeService.HandleResult(r.Context(), &result); err != nil {
		h.RespondServiceError(w, err, "failed to apply transcode result",
			zap.String("jobId", result.JobID), zap.String("mediaId", result.MediaID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
