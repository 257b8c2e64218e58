package middleware

import (
	"context"
	"net/http"
	"strings"

	"vetcare-backend/internal/auth"
	"vetcare-backend/internal/transport"
)

const (
	AccessCookie  = "vetcare_access"
	RefreshCookie = "vetcare_refresh"
)

type identityKey struct{}

type Identity struct {
	UserID string
	Role   string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(identityKey{}).(Identity)
	return v, ok
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(AccessCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireUser admits any authenticated account and stores its identity in the
// request context.
func RequireUser(manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "auth not configured", nil)
				return
			}

			token := tokenFromRequest(r)
			if token == "" {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}
			claims, err := manager.ParseAccess(token)
			if err != nil {
				transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
				return
			}

			ident := Identity{UserID: claims.Subject, Role: claims.Role}
			ctx := context.WithValue(r.Context(), identityKey{}, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff admits admin accounts, or requests carrying the static staff key.
func RequireStaff(staffKey string, manager *auth.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if staffKey == "" && manager == nil {
				transport.WriteError(w, http.StatusServiceUnavailable, "staff auth not configured", nil)
				return
			}

			if staffKey != "" && r.Header.Get("X-Staff-Key") == staffKey {
				ctx := context.WithValue(r.Context(), identityKey{}, Identity{Role: "admin"})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if manager != nil {
				token := tokenFromRequest(r)
				if token != "" {
					claims, err := manager.ParseAccess(token)
					if err == nil && claims.Role == "admin" {
						ctx := context.WithValue(r.Context(), identityKey{}, Identity{UserID: claims.Subject, Role: claims.Role})
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
			}

			transport.WriteError(w, http.StatusUnauthorized, "unauthorized", nil)
		})
	}
}
