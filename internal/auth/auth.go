package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Token verification failures, surfaced to clients as 403 with distinct
// messages for the missing-token and invalid-token cases.
var (
	ErrNoToken      = errors.New("access denied: no token provided")
	ErrInvalidToken = errors.New("access denied: invalid token")
)

// Claims carries the caller identity inside the bearer token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyHeader validates the Authorization header value and returns the
// caller's user id. An empty or non-bearer header is ErrNoToken; anything
// that fails parsing or signature verification is ErrInvalidToken.
func (v *Verifier) VerifyHeader(header string) (string, error) {
	if header == "" {
		return "", ErrNoToken
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrNoToken
	}
	return v.Verify(strings.TrimPrefix(header, "Bearer "))
}

// Verify validates a raw token string and returns the caller's user id.
func (v *Verifier) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
