package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/camden-git/acnesense/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"
)

// AuthMiddleware verifies the access token from the Authorization header or
// the access_token cookie and, if valid, adds the user to the request context.
func AuthMiddleware(userRepo repository.UserRepository, tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := tokenFromRequest(r)
			if !ok {
				writeAuthRequired(w)
				return
			}

			userID, err := tokens.Parse(tokenString)
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid token")
				return
			}

			user, err := userRepo.GetByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					log.Printf("auth: failed to load user %d: %v", userID, err)
				}
				// the user may have been deleted after the token was issued
				WriteAPIError(w, http.StatusUnauthorized, codeUnauthorized, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}
