package auth

import (
	"context"
	"net/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ContextKeySession is the context key for the authenticated session
	ContextKeySession contextKey = "auth_session"
)

// tokenFromRequest extracts a bearer token from the Authorization header,
// falling back to the token query parameter for watch connections
// established from clients that cannot set headers
func tokenFromRequest(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, err := ParseAuthHeader(header)
		if err != nil {
			return "", false
		}
		return token, true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// Middleware returns an HTTP middleware that enforces authentication
func (am *AuthManager) Middleware(requiredPermission Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromRequest(r)
			if !ok {
				http.Error(w, "Unauthorized: missing credentials", http.StatusUnauthorized)
				return
			}

			// Validate session
			session, err := am.ValidateSession(token)
			if err != nil {
				http.Error(w, "Unauthorized: invalid or expired token", http.StatusUnauthorized)
				return
			}

			// Check permission
			if !am.HasPermission(session.Role, requiredPermission) {
				http.Error(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}

			// Add session to context
			ctx := context.WithValue(r.Context(), ContextKeySession, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware returns an HTTP middleware that adds the session to the
// context when credentials are present but does not require them
func (am *AuthManager) OptionalMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := tokenFromRequest(r); ok {
				if session, err := am.ValidateSession(token); err == nil {
					ctx := context.WithValue(r.Context(), ContextKeySession, session)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSession extracts the session from the request context
func GetSession(r *http.Request) (*Session, bool) {
	session, ok := r.Context().Value(ContextKeySession).(*Session)
	return session, ok
}
