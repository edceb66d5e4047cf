package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/learnhub/backend/libs/apperrors"
	"go.uber.org/zap"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// BaseHandler provides common handler functionality
type BaseHandler struct {
	Logger *zap.Logger
}

// RespondJSON sends a JSON response
func (h *BaseHandler) RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", zap.Error(err))
	}
}

// RespondError sends an error JSON response
func (h *BaseHandler) RespondError(w http.ResponseWriter, status int, message string) {
	h.RespondJSON(w, status, map[string]string{"error": message})
}

// RespondServiceError maps a service error to its HTTP status.
// NotReady errors also carry the resource state so clients can decide to poll or give up.
func (h *BaseHandler) RespondServiceError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		h.Logger.Error(msg, append(fields, zap.Error(err))...)
		h.RespondError(w, http.StatusInternalServerError, msg)
		return
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		h.Logger.Error(msg, append(fields, zap.Error(err))...)
		h.RespondError(w, status, msg)
		return
	}

	h.Logger.Info(msg, append(fields, zap.String("reason", appErr.Message))...)
	if appErr.Kind == apperrors.KindNotReady {
		h.RespondJSON(w, status, map[string]string{"error": appErr.Message, "status": appErr.State})
		return
	}
	h.RespondError(w, status, appErr.Message)
}

// DecodeJSON decodes the request body into dst and runs struct tag validation.
// It writes a 400 response and returns false when the body is invalid.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		h.RespondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}

	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", lowerFirst(fe.Field())))
		case "gte", "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", lowerFirst(fe.Field()), fe.Param()))
		case "lte", "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s", lowerFirst(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", lowerFirst(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
