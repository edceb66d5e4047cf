package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/learnhub/backend/libs/auth/service"
	"github.com/stretchr/testify/assert"
)

type mockValidator struct {
	identity service.Identity
	err      error
	seen     string
}

func (m *mockValidator) ValidateAccessToken(token string) (service.Identity, error) {
	m.seen = token
	return m.identity, m.err
}

func TestRoleMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		requiredRole   int
		setupRequest   func(r *http.Request)
		validator      *mockValidator
		expectedStatus int
		expectedToken  string
	}{
		{
			name:         "bearer header",
			requiredRole: service.RoleLearner,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
			},
			validator:      &mockValidator{identity: service.Identity{UserID: 5, Role: service.RoleLearner}},
			expectedStatus: http.StatusOK,
			expectedToken:  "abc",
		},
		{
			name:         "cookie fallback",
			requiredRole: service.RoleLearner,
			setupRequest: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "access_token", Value: "from-cookie"})
			},
			validator:      &mockValidator{identity: service.Identity{UserID: 5, Role: service.RoleLearner}},
			expectedStatus: http.StatusOK,
			expectedToken:  "from-cookie",
		},
		{
			name:           "no token",
			requiredRole:   service.RoleLearner,
			setupRequest:   func(r *http.Request) {},
			validator:      &mockValidator{},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:         "invalid token",
			requiredRole: service.RoleLearner,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer bad")
			},
			validator:      &mockValidator{err: errors.New("expired")},
			expectedStatus: http.StatusUnauthorized,
			expectedToken:  "bad",
		},
		{
			name:         "insufficient role",
			requiredRole: service.RoleTutor,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer abc")
			},
			validator:      &mockValidator{identity: service.Identity{UserID: 5, Role: service.RoleLearner}},
			expectedStatus: http.StatusForbidden,
			expectedToken:  "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIdentity service.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotIdentity, _ = GetIdentity(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setupRequest(req)
			rec := httptest.NewRecorder()

			RoleMiddleware(tt.validator, tt.requiredRole)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, tt.expectedToken, tt.validator.seen)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.validator.identity, gotIdentity)
			}
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		configured     string
		provided       string
		expectedStatus int
	}{
		{name: "matching key", configured: "secret", provided: "secret", expectedStatus: http.StatusOK},
		{name: "wrong key", configured: "secret", provided: "nope", expectedStatus: http.StatusUnauthorized},
		{name: "missing key", configured: "secret", provided: "", expectedStatus: http.StatusUnauthorized},
		{name: "unconfigured key", configured: "", provided: "", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			rec := httptest.NewRecorder()

			APIKeyMiddleware(tt.configured)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}
