package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected int
	}{
		{name: "validation", err: Validation("bad %s", "input"), expected: http.StatusBadRequest},
		{name: "authentication", err: Authentication("no token"), expected: http.StatusUnauthorized},
		{name: "authorization", err: Authorization("not enrolled"), expected: http.StatusForbidden},
		{name: "not found", err: NotFound("media"), expected: http.StatusNotFound},
		{name: "conflict", err: Conflict("duplicate"), expected: http.StatusConflict},
		{name: "not ready", err: NotReady("PROCESSING", "media is still processing"), expected: http.StatusConflict},
		{name: "internal", err: Internal("boom", errors.New("cause")), expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.HTTPStatus())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("failed to grant playback: %w", Authorization("user is not enrolled in course %d", 7))

	assert.Equal(t, KindAuthorization, KindOf(err))
	assert.True(t, Is(err, KindAuthorization))
	assert.False(t, Is(err, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Contains(t, err.Error(), "user is not enrolled in course 7")
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "lesson not found", NotFound("lesson").Error())
	assert.Equal(t, "boom: cause", Internal("boom", errors.New("cause")).Error())
}
