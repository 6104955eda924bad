package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/SofiaQuintana/products-inventory/pkg/errors"
)

// AdminRole is the role claim required by AdminAuth.
const AdminRole = "admin"

type subjectKey struct{}

// AdminAuth guards administrative routes with an HMAC-signed bearer token
// whose "role" claim is "admin". The token subject ("sub", falling back to
// "user_id") is stored in the request context.
func AdminAuth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeError(w, apperrors.Unauthorized("missing or malformed bearer token"))
				return
			}

			claims := jwt.MapClaims{}
			if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
				return key, nil
			}); err != nil {
				logger.WarnContext(r.Context(), "invalid admin token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeError(w, apperrors.Unauthorized("invalid or expired token"))
				return
			}

			if role, _ := claims["role"].(string); role != AdminRole {
				writeError(w, apperrors.Forbidden("insufficient permissions"))
				return
			}

			subject, _ := claims.GetSubject()
			if subject == "" {
				subject, _ = claims["user_id"].(string)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, subject)))
		})
	}
}

// SubjectFromContext returns the authenticated token subject, if any.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
