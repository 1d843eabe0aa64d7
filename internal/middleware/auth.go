package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"chatstream/internal/auth"
)

// NewJWTMiddleware validates the identity token from an Authorization:
// Bearer header or the auth_token cookie and puts the user id on the
// request context. Requests without a valid token get a 401; an invalid
// cookie is cleared on the way out.
func NewJWTMiddleware(secretKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				cookie, err := r.Cookie("auth_token")
				if err != nil {
					log.Printf("[AuthMiddleware] Missing credentials: %v", err)
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				tokenString = cookie.Value
			}

			userID, err := auth.ValidateToken(tokenString, secretKey)
			if err != nil {
				log.Printf("[AuthMiddleware] Invalid token: %v", err)
				// Clear invalid cookie
				http.SetCookie(w, &http.Cookie{
					Name:     "auth_token",
					Value:    "",
					Path:     "/",
					Expires:  time.Unix(0, 0),
					HttpOnly: true,
					Secure:   true,
					SameSite: http.SameSiteLaxMode,
				})
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
