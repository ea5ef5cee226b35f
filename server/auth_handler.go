package server

import (
	"context"
	"net/http"
	"strings"

	"Rippers/core/auth"
	"Rippers/logger"
)

type contextKey string

const subjectKey contextKey = "subject"

// AuthMiddleware checks the bearer token when secret is set. An empty secret
// leaves the API open.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeFail(w, http.StatusUnauthorized, "authorization header is required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeFail(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				logger.Debug("Rejected token", logger.String("path", r.URL.Path), logger.ErrorField(err))
				writeFail(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the token subject of an authenticated request.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok
}
