// Package middleware provides HTTP middleware for authentication.
//
// AuthMiddleware must run before any handler that calls GetPrincipal; handlers
// treat a missing principal as an unauthenticated request.
package middleware

import (
	"net/http"
	"strings"

	"github.com/safesight/hseai/pkg/auth"
	"github.com/safesight/hseai/pkg/contextkeys"
	"github.com/safesight/hseai/pkg/fault"
	"github.com/safesight/hseai/pkg/httputil"
)

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	verifier auth.TokenVerifier
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handler wraps an HTTP handler with authentication.
// Expects "Authorization: Bearer <token>" carrying an identity-provider token.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteFaultKind(w, fault.KindUnauthenticated, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteFaultKind(w, fault.KindUnauthenticated, "invalid authorization header format")
			return
		}

		principal, err := m.verifier.Verify(parts[1])
		if err != nil {
			httputil.WriteFaultKind(w, fault.KindUnauthenticated, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the authenticated principal from the request.
// Returns nil if AuthMiddleware did not run or authentication failed.
func GetPrincipal(r *http.Request) *auth.Principal {
	val := r.Context().Value(contextkeys.PrincipalKey)
	if val == nil {
		return nil
	}
	principal, ok := val.(*auth.Principal)
	if !ok {
		return nil
	}
	return principal
}
