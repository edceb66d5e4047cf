package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"go.uber.org/zap"
)

// PlaybackService defines playback authorization operations
type PlaybackService interface {
	IssuePlaybackGrant(ctx context.Context, mediaID string, userID, lessonID int) (*models.PlaybackGrant, error)
	Heartbeat(ctx context.Context, sessionID string, userID, watchTimeSeconds int, completionRate float64) (*models.HeartbeatResult, error)
	EndSession(ctx context.Context, sessionID string, userID int) error
	// RenderManifest returns the session's playlist with nested URIs signed. An empty variant selects the master playlist.
	RenderManifest(ctx context.Context, sessionID string, userID int, variant string) ([]byte, error)
}

// PlaybackHandler handles playback HTTP requests
type PlaybackHandler struct {
	handlers.BaseHandler
	playbackService PlaybackService
	heartbeatLimit  func(http.Handler) http.Handler
}

// NewPlaybackHandler creates a new playback handler. heartbeatLimit may be nil.
func NewPlaybackHandler(playbackService PlaybackService, heartbeatLimit func(http.Handler) http.Handler, logger *zap.Logger) *PlaybackHandler {
	return &PlaybackHandler{
		BaseHandler:     handlers.BaseHandler{Logger: logger},
		playbackService: playbackService,
		heartbeatLimit:  heartbeatLimit,
	}
}

// RegisterRoutes registers playback routes
func (h *PlaybackHandler) RegisterRoutes(r chi.Router) {
	r.Route("/playback", func(r chi.Router) {
		r.Post("/token", h.IssueToken)
		r.Route("/sessions/{id}", func(r chi.Router) {
			if h.heartbeatLimit != nil {
				r.With(h.heartbeatLimit).Post("/heartbeat", h.Heartbeat)
			} else {
				r.Post("/heartbeat", h.Heartbeat)
			}
			r.Post("/end", h.EndSession)
			r.Get("/manifest", h.Manifest)
		})
	})
}

// IssueToken handles POST /playback/token
// @Summary Authorize playback
// @Description Checks enrollment and media readiness, opens a playback session and returns a time-boxed signed manifest URL
// @Tags playback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PlaybackTokenRequest true "Lesson to play"
// @Success 200 {object} models.PlaybackGrant
// @Failure 400 {object} map[string]string "Lesson is not a video lesson"
// @Failure 403 {object} map[string]string "Not enrolled"
// @Failure 404 {object} map[string]string "Lesson or media not found"
// @Failure 409 {object} map[string]string "Media not ready, carries status"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /playback/token [post]
func (h *PlaybackHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}

	var req models.PlaybackTokenRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	grant, err := h.playbackService.IssuePlaybackGrant(r.Context(), req.MediaID, identity.UserID, req.LessonID)
	if err != nil {
		h.RespondServiceError(w, err, "failed to issue playback grant",
			zap.Int("lessonId", req.LessonID), zap.String("mediaId", req.MediaID), zap.Int("userId", identity.UserID))
		return
	}

	h.RespondJSON(w, http.StatusOK, grant)
}

// Heartbeat handles POST /playback/sessions/{id}/heartbeat
// @Summary Report playback progress
// @Tags playback
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body models.HeartbeatRequest true "Progress"
// @Success 200 {object} models.HeartbeatResult
// @Failure 400 {object} map[string]string "Invalid progress"
// @Failure 403 {object} map[string]string "Not the session owner"
// @Failure 409 {object} map[string]string "Session ended or expired"
// @Failure 429 {object} map[string]string "Too many heartbeats"
// @Router /playback/sessions/{id}/heartbeat [post]
func (h *PlaybackHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "id")

	var req models.HeartbeatRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.playbackService.Heartbeat(r.Context(), sessionID, identity.UserID, req.WatchTimeSeconds, *req.CompletionRate)
	if err != nil {
		h.RespondServiceError(w, err, "failed to record heartbeat", zap.String("sessionId", sessionID))
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// EndSession handles POST /playback/sessions/{id}/end
// @Summary End a playback session
// @Tags playback
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204 "Ended"
// @Failure 403 {object} map[string]string "Not the session owner"
// @Failure 404 {object} map[string]string "Session not found"
// @Router /playback/sessions/{id}/end [post]
func (h *PlaybackHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "id")

	if err := h.playbackService.EndSession(r.Context(), sessionID, identity.UserID); err != nil {
		h.RespondServiceError(w, err, "failed to end session", zap.String("sessionId", sessionID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Manifest handles GET /playback/sessions/{id}/manifest
// @Summary Get a signed HLS playlist
// @Description Returns the master playlist, or the variant named by the query, with every nested URI signed for the session
// @Tags playback
// @Produce application/vnd.apple.mpegurl
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param variant query string false "Variant playlist path relative to the master"
// @Success 200 {string} string "Playlist"
// @Failure 400 {object} map[string]string "Invalid variant"
// @Failure 403 {object} map[string]string "Not the session owner"
// @Failure 409 {object} map[string]string "Session expired or media not ready"
// @Router /playback/sessions/{id}/manifest [get]
func (h *PlaybackHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(&h.BaseHandler, w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "id")
	variant := r.URL.Query().Get("variant")

	body, err := h.playbackService.RenderManifest(r.Context(), sessionID, identity.UserID, variant)
	if err != nil {
		h.RespondServiceError(w, err, "failed to render manifest",
			zap.String("sessionId", sessionID), zap.String("variant", variant))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.Logger.Warn("failed to write manifest", zap.Error(err), zap.String("sessionId", sessionID))
	}
}
