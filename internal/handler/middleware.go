package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/boddenberg/iagente-vida-go/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const adminSubjectKey contextKey = "adminSubject"

// AdminAuthMiddleware validates Bearer tokens issued by POST /v1/admin/token.
// When admin access is not configured every request gets 503.
func AdminAuthMiddleware(auth *service.AdminAuth, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil || !auth.Enabled() {
				writeError(w, http.StatusServiceUnavailable, "admin API disabled")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("admin: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := auth.ValidateToken(parts[1])
			if err != nil {
				logger.Warn("admin: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), adminSubjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminSubjectFromContext returns the subject of the authenticated admin token.
func AdminSubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(adminSubjectKey).(string)
	return v
}
