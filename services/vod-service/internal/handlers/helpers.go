package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	authMiddleware "github.com/learnhub/backend/libs/auth/middleware"
	"github.com/learnhub/backend/libs/auth/service"
	"github.com/learnhub/backend/libs/handlers"
)

// identityOrUnauthorized returns the caller identity placed in context by the auth middleware
func identityOrUnauthorized(h *handlers.BaseHandler, w http.ResponseWriter, r *http.Request) (service.Identity, bool) {
	identity, ok := authMiddleware.GetIdentity(r.Context())
	if !ok {
		h.RespondError(w, http.StatusUnauthorized, "authentication required")
		return service.Identity{}, false
	}
	return identity, true
}

// intParam parses a positive integer URL parameter, writing a 400 response on failure
func intParam(h *handlers.BaseHandler, w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		h.RespondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
