package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"turfbooking/internal/db"
	"turfbooking/internal/repository"
)

type contextKey string

const userContextKey contextKey = "user"

// Middleware resolves the bearer credential to a user record. Credential
// problems each get a distinct 401 message; a datastore failure during
// lookup is a 500, not an authentication failure.
func Middleware(secret string, users repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "Authorization token missing")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					writeAuthError(w, http.StatusUnauthorized, "Token has expired")
					return
				}
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			userID, ok := claims["user_id"].(float64)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := users.GetByID(int64(userID))
			if err != nil {
				log.Printf("Error looking up user %d: %v", int64(userID), err)
				writeAuthError(w, http.StatusInternalServerError, "Error resolving user")
				return
			}
			if user == nil {
				writeAuthError(w, http.StatusUnauthorized, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom returns the authenticated user placed in the context by
// Middleware.
func UserFrom(ctx context.Context) (*db.User, bool) {
	user, ok := ctx.Value(userContextKey).(*db.User)
	return user, ok
}

func writeAuthError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
