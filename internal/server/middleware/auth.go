// Package middleware provides HTTP middleware for authentication.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/jonathan/animelist/internal/logging"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const principalKey ContextKey = "principal"

// ErrUnauthenticated is returned when a request has no usable credentials.
var ErrUnauthenticated = errors.New("not authenticated")

// Auth methods recorded on a Principal.
const (
	MethodHeader = "header"
	MethodBearer = "bearer"
	MethodCookie = "cookie"
	MethodAPIKey = "api_key"
)

// Principal is the authenticated caller. TokenID and ExpiresAt are set for
// JWT sessions only.
type Principal struct {
	UserID    int64
	Username  string
	Method    string
	TokenID   string
	ExpiresAt time.Time
}

// Authenticator resolves the caller of a request. It returns
// ErrUnauthenticated (possibly wrapped) when the request carries no valid
// credentials.
type Authenticator interface {
	Authenticate(r *http.Request) (*Principal, error)
}

// Authenticate attaches the caller to the request context when credentials
// resolve. Anonymous requests pass through; use RequireAuth to reject them.
func Authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := a.Authenticate(r)
			if err != nil {
				if !errors.Is(err, ErrUnauthenticated) {
					logging.Ctx(r.Context()).Warn().Err(err).Msg("authentication failed")
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAuth rejects requests without a principal with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrUnauthenticated.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller stored in ctx, or nil.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// GetUserID extracts the authenticated user ID from the request context.
func GetUserID(r *http.Request) (int64, error) {
	p := PrincipalFrom(r.Context())
	if p == nil {
		return 0, ErrUnauthenticated
	}
	return p.UserID, nil
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
// The scheme is case-insensitive.
func BearerToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
