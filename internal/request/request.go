package request

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity is the authenticated caller extracted from a verified
// token.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// ClientIP extracts the client IP from the request, respecting X-Forwarded-For and X-Real-IP.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return r.RemoteAddr
}

// WithIdentity returns a context with the caller identity attached.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the caller identity, or nil if the
// request was not authenticated.
func IdentityFromContext(r *http.Request) *Identity {
	identity, _ := r.Context().Value(identityContextKey).(*Identity)
	return identity
}
