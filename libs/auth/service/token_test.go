package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "b8a3c2267dc85f855dea9b46b452bf20"

func TestTokenValidator_ValidateAccessToken(t *testing.T) {
	tv := NewTokenValidator(testSecret, 0)

	signWith := func(secret string, method jwt.SigningMethod, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name          string
		token         func() string
		expected      Identity
		expectedError string
	}{
		{
			name: "valid learner token",
			token: func() string {
				s, err := tv.SignAccessToken(42, RoleLearner, time.Hour)
				require.NoError(t, err)
				return s
			},
			expected: Identity{UserID: 42, Role: RoleLearner},
		},
		{
			name: "valid admin token",
			token: func() string {
				s, err := tv.SignAccessToken(1, RoleAdmin, time.Hour)
				require.NoError(t, err)
				return s
			},
			expected: Identity{UserID: 1, Role: RoleAdmin},
		},
		{
			name: "expired token",
			token: func() string {
				s, err := tv.SignAccessToken(42, RoleLearner, -time.Minute)
				require.NoError(t, err)
				return s
			},
			expectedError: "failed to parse token",
		},
		{
			name: "wrong secret",
			token: func() string {
				return signWith("other-secret", jwt.SigningMethodHS256, AccessClaims{
					UserID: 42, Role: RoleLearner, Type: "access",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
			},
			expectedError: "failed to parse token",
		},
		{
			name: "refresh token rejected",
			token: func() string {
				return signWith(testSecret, jwt.SigningMethodHS256, AccessClaims{
					UserID: 42, Role: RoleLearner, Type: "refresh",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
			},
			expectedError: "token is not an access token",
		},
		{
			name: "missing user id",
			token: func() string {
				return signWith(testSecret, jwt.SigningMethodHS256, AccessClaims{
					Role: RoleLearner, Type: "access",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
			},
			expectedError: "user_id not found in token",
		},
		{
			name: "unknown role",
			token: func() string {
				return signWith(testSecret, jwt.SigningMethodHS256, AccessClaims{
					UserID: 42, Role: 9, Type: "access",
					RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: future},
				})
			},
			expectedError: "unknown role 9",
		},
		{
			name: "missing expiry",
			token: func() string {
				return signWith(testSecret, jwt.SigningMethodHS256, AccessClaims{
					UserID: 42, Role: RoleLearner, Type: "access",
				})
			},
			expectedError: "failed to parse token",
		},
		{
			name:          "garbage",
			token:         func() string { return "not-a-token" },
			expectedError: "failed to parse token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := tv.ValidateAccessToken(tt.token())

			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, identity)
		})
	}
}

func TestIdentity_IsAdmin(t *testing.T) {
	assert.True(t, Identity{UserID: 1, Role: RoleAdmin}.IsAdmin())
	assert.False(t, Identity{UserID: 1, Role: RoleTutor}.IsAdmin())
}
