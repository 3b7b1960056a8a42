// ABOUTME: Tests for static and JWT bearer token verification
// ABOUTME: Covers acceptance, rejection, expiry and wrong signing secrets

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier("correct-horse-battery-staple")

	assert.NoError(t, v.Verify("correct-horse-battery-staple"))
	assert.ErrorIs(t, v.Verify("wrong-token"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(""), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify("correct-horse-battery-staple "), ErrInvalidToken)
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("operator", time.Hour)
	require.NoError(t, err)

	assert.NoError(t, v.Verify(token))
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	token, err := v.Generate("operator", -time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(token), ErrExpiredToken)
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	signer := NewJWTVerifier([]byte("secret-a"))
	verifier := NewJWTVerifier([]byte("secret-b"))

	token, err := signer.Generate("operator", time.Hour)
	require.NoError(t, err)

	assert.ErrorIs(t, verifier.Verify(token), ErrInvalidToken)
}

func TestJWTVerifier_RejectsNonHMACAlg(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	// alg=none tokens must never verify
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "operator"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	assert.ErrorIs(t, v.Verify(token), ErrInvalidToken)
}

func TestJWTVerifier_Garbage(t *testing.T) {
	v := NewJWTVerifier([]byte("test-secret"))

	assert.ErrorIs(t, v.Verify("not.a.jwt"), ErrInvalidToken)
	assert.ErrorIs(t, v.Verify(""), ErrInvalidToken)
}
