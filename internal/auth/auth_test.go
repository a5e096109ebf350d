package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/shopstack/storefront-api/internal/auth"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims auth.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	assert.NoError(t, err)
	return signed
}

func TestVerifyHeader_ValidToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, auth.Claims{UserID: "user-1"})

	userID, err := v.VerifyHeader("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyHeader_SubjectFallback(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-2"},
	})

	userID, err := v.VerifyHeader("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, "user-2", userID)
}

func TestVerifyHeader_NoToken(t *testing.T) {
	v := auth.NewVerifier(testSecret)

	_, err := v.VerifyHeader("")
	assert.ErrorIs(t, err, auth.ErrNoToken)

	_, err = v.VerifyHeader("Basic abc123")
	assert.ErrorIs(t, err, auth.ErrNoToken)
}

func TestVerifyHeader_WrongSecret(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, "other-secret", auth.Claims{UserID: "user-1"})

	_, err := v.VerifyHeader("Bearer " + token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyHeader_Expired(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, auth.Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := v.VerifyHeader("Bearer " + token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerifyHeader_Garbage(t *testing.T) {
	v := auth.NewVerifier(testSecret)

	_, err := v.VerifyHeader("Bearer not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestVerify_MissingIdentity(t *testing.T) {
	v := auth.NewVerifier(testSecret)
	token := signToken(t, testSecret, auth.Claims{})

	_, err := v.VerifyHeader("Bearer " + token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
