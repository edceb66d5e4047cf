package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSignature is returned when a blob URL token is missing, expired or for another object
var ErrInvalidSignature = errors.New("invalid or expired blob signature")

// blobClaims authorizes one method on one key until expiry
type blobClaims struct {
	Key    string `json:"key"`
	Method string `json:"method"`
	jwt.RegisteredClaims
}

// urlSigner mints and verifies the tokens carried by local blob URLs
type urlSigner struct {
	secret []byte
}

func newURLSigner(secret string) *urlSigner {
	return &urlSigner{secret: []byte(secret)}
}

func (s *urlSigner) sign(method, key string, expiresAt time.Time) (string, error) {
	claims := blobClaims{
		Key:    key,
		Method: method,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign blob url: %w", err)
	}
	return token, nil
}

func (s *urlSigner) verify(token, method, key string, now time.Time) error {
	claims := &blobClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return ErrInvalidSignature
	}
	if claims.Key != key || claims.Method != method {
		return ErrInvalidSignature
	}
	return nil
}
