package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/streetink-bookings/internal/http/response"
	"github.com/diagnosis/streetink-bookings/pkg/auth"
	"github.com/diagnosis/streetink-bookings/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireJWT admits requests carrying a valid artist bearer token.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				response.Unauthorized(w, "missing or invalid authorization header")
				return
			}
			claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), secret)
			if err != nil {
				response.Unauthorized(w, "invalid authorization token")
				return
			}
			if claims.Role != auth.RoleArtist {
				response.WriteError(w, http.StatusForbidden, "insufficient permissions", response.CodeForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = logger.WithUserID(ctx, claims.Sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Claims(r *http.Request) *auth.Claims {
	v, _ := r.Context().Value(CtxClaims).(*auth.Claims)
	return v
}
