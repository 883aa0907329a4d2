package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/mediscan/mediscan-backend/pkg/errors"
	"github.com/mediscan/mediscan-backend/pkg/httputil"
	"github.com/mediscan/mediscan-backend/pkg/logger"
)

type contextKey string

const claimsKey contextKey = "auth_claims"

// WithClaims stores validated claims in the context
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the caller's claims, or nil for anonymous requests
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// Middleware validates Bearer tokens. With required false a missing header
// passes through anonymously, but a present and invalid token is rejected.
func Middleware(m *Manager, required bool, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if required {
					httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := m.ValidateToken(tokenString)
			if err != nil {
				log.Debug().Err(err).Msg("token validation failed")
				httputil.ErrorLocalized(w, r, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = httputil.WithClientID(ctx, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope rejects authenticated callers whose token lacks scope.
// Anonymous requests are left to Middleware's required setting.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c := ClaimsFromContext(r.Context()); c != nil && !c.HasScope(scope) {
				httputil.ErrorLocalized(w, r, errors.Forbidden("token lacks scope "+scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
