package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role levels carried in access tokens. Higher levels include the lower ones.
const (
	RoleLearner = 1
	RoleTutor   = 2
	RoleAdmin   = 3
)

// Identity is the verified caller extracted from an access token
type Identity struct {
	UserID int
	Role   int
}

// IsAdmin reports whether the identity has the admin role
func (i Identity) IsAdmin() bool {
	return i.Role >= RoleAdmin
}

// AccessClaims is the payload of an access token issued by the auth service
type AccessClaims struct {
	UserID int    `json:"user_id"`
	Role   int    `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

// TokenValidator verifies access tokens issued by the auth service.
// Session issuance lives in the auth service; this side only needs the shared secret.
type TokenValidator struct {
	secret []byte
	leeway time.Duration
}

// NewTokenValidator creates a validator for HS256 tokens signed with secret
func NewTokenValidator(secret string, leeway time.Duration) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), leeway: leeway}
}

// ValidateAccessToken parses and verifies an access token and returns the caller identity
func (tv *TokenValidator) ValidateAccessToken(tokenString string) (Identity, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.secret, nil
	}, jwt.WithLeeway(tv.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return Identity{}, errors.New("token is invalid")
	}

	if claims.Type != "access" {
		return Identity{}, errors.New("token is not an access token")
	}

	if claims.UserID <= 0 {
		return Identity{}, errors.New("user_id not found in token")
	}

	if claims.Role < RoleLearner || claims.Role > RoleAdmin {
		return Identity{}, fmt.Errorf("unknown role %d in token", claims.Role)
	}

	return Identity{UserID: claims.UserID, Role: claims.Role}, nil
}

// SignAccessToken mints an access token with the same claims layout the auth service uses.
// Only tests and local tooling mint tokens here.
func (tv *TokenValidator) SignAccessToken(userID, role int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID,
		Role:   role,
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tv.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}
