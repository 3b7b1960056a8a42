// ABOUTME: Bearer token verification: static shared token and HS256 JWTs
// ABOUTME: Either verifier may be configured; a request passes if any accepts it

package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenVerifier validates a bearer token.
type TokenVerifier interface {
	Verify(tokenString string) error
}

// StaticVerifier accepts a single pre-shared token, compared in constant time.
type StaticVerifier struct {
	token []byte
}

// NewStaticVerifier creates a verifier for the given shared token.
func NewStaticVerifier(token string) *StaticVerifier {
	return &StaticVerifier{token: []byte(token)}
}

// Verify checks the presented token against the configured one.
func (v *StaticVerifier) Verify(tokenString string) error {
	if subtle.ConstantTimeCompare(v.token, []byte(tokenString)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// JWTVerifier validates HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a new JWT verifier with the given secret.
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify validates the token signature and expiry.
func (v *JWTVerifier) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Generate creates a signed JWT expiring after the given duration. Used by
// operators to mint API tokens; courier itself only verifies.
func (v *JWTVerifier) Generate(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
