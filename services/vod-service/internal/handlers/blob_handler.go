package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/learnhub/backend/libs/handlers"
	"github.com/learnhub/backend/services/vod-service/internal/models"
	"github.com/learnhub/backend/services/vod-service/internal/storage"
	"go.uber.org/zap"
)

// LocalBlobGateway is the filesystem blob store behind the signed /blobs URLs
type LocalBlobGateway interface {
	Verify(method, key, token string) error
	Put(key string, body io.Reader, maxSize int64) (int64, error)
	OpenFile(key string) (*os.File, error)
}

// BlobHandler serves the pre-signed URLs minted by the local storage driver
type BlobHandler struct {
	handlers.BaseHandler
	gateway LocalBlobGateway
	maxSize int64
}

// NewBlobHandler creates a new blob handler. Uploads larger than the video ceiling are rejected.
func NewBlobHandler(gateway LocalBlobGateway, logger *zap.Logger) *BlobHandler {
	return &BlobHandler{
		BaseHandler: handlers.BaseHandler{Logger: logger},
		gateway:     gateway,
		maxSize:     models.MediaCategoryVideo.MaxSize(),
	}
}

// RegisterRoutes registers blob routes. They authenticate with the URL token only.
func (h *BlobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/blobs/*", h.Download)
	r.Head("/blobs/*", h.Download)
	r.Put("/blobs/*", h.Upload)
}

// Upload handles PUT /blobs/{key}
// @Summary Upload to a pre-signed URL
// @Tags blobs
// @Accept application/octet-stream
// @Param key path string true "Object key"
// @Param token query string true "Signature"
// @Success 200 "Stored"
// @Failure 403 {object} map[string]string "Invalid or expired signature"
// @Failure 413 {object} map[string]string "Object too large"
// @Router /blobs/{key} [put]
func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	key, ok := h.authorize(w, r, http.MethodPut)
	if !ok {
		return
	}
	defer r.Body.Close()

	size, err := h.gateway.Put(key, r.Body, h.maxSize)
	if err != nil {
		h.respondBlobError(w, err, key)
		return
	}

	h.Logger.Info("blob stored", zap.String("key", key), zap.Int64("size", size))
	w.WriteHeader(http.StatusOK)
}

// Download handles GET /blobs/{key}
// @Summary Download from a pre-signed URL
// @Description Supports range requests
// @Tags blobs
// @Produce application/octet-stream
// @Param key path string true "Object key"
// @Param token query string true "Signature"
// @Param Range header string false "Range"
// @Success 200 "Object content"
// @Success 206 "Partial object content"
// @Failure 403 {object} map[string]string "Invalid or expired signature"
// @Failure 404 {object} map[string]string "Object not found"
// @Router /blobs/{key} [get]
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, ok := h.authorize(w, r, http.MethodGet)
	if !ok {
		return
	}

	file, err := h.gateway.OpenFile(key)
	if err != nil {
		h.respondBlobError(w, err, key)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		h.respondBlobError(w, storage.ErrObjectNotFound, key)
		return
	}

	if path.Ext(key) == ".m3u8" {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	}
	http.ServeContent(w, r, path.Base(key), info.ModTime(), file)
}

// authorize extracts the object key and checks the URL token for method
func (h *BlobHandler) authorize(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(key)
		if err != nil {
			h.RespondError(w, http.StatusBadRequest, "invalid object key")
			return "", false
		}
		key = unescaped
	}

	if err := h.gateway.Verify(method, key, r.URL.Query().Get("token")); err != nil {
		h.Logger.Info("rejected blob request", zap.String("key", key), zap.String("method", method), zap.Error(err))
		h.RespondError(w, http.StatusForbidden, "invalid or expired signature")
		return "", false
	}
	return key, true
}

func (h *BlobHandler) respondBlobError(w http.ResponseWriter, err error, key string) {
	switch {
	case errors.Is(err, storage.ErrObjectNotFound):
		h.RespondError(w, http.StatusNotFound, "object not found")
	case errors.Is(err, storage.ErrObjectTooLarge):
		h.RespondError(w, http.StatusRequestEntityTooLarge, "object exceeds maximum size")
	case errors.Is(err, storage.ErrInvalidKey):
		h.RespondError(w, http.StatusBadRequest, "invalid object key")
	default:
		h.Logger.Error("blob request failed", zap.String("key", key), zap.Error(err))
		h.RespondError(w, http.StatusInternalServerError, "blob request failed")
	}
}
