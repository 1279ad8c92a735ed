package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSecretLength mirrors the teacher's JWT service precondition:
// HMAC secrets shorter than 32 bytes are rejected at construction time
// rather than produce a weak signature silently.
var ErrInvalidSecretLength = errors.New("adminapi: JWT secret must be at least 32 characters")

// jwtAuthenticator validates HS256 bearer tokens, adapted from the
// teacher's JWTService/JWTAuth pair but reduced to a single admin-access
// claim — the admin surface has no user/session model of its own.
type jwtAuthenticator struct {
	secret []byte
}

func newJWTAuthenticator(secret string) (*jwtAuthenticator, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	return &jwtAuthenticator{secret: []byte(secret)}, nil
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware validates the Authorization header on every request and
// rejects with 401 on a missing, malformed, expired, or mis-signed token.
func (a *jwtAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := extractBearerToken(r)
		if !ok {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return a.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
