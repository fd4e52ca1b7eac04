// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values and services read them. Keeping this package
// free of net/http lets services depend only on context.
//
// Usage in services (read values):
//
//	ident, ok := requestcontext.Identity(ctx)
//	ip := requestcontext.ClientIP(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is one of the three access roles of the system.
type Role string

const (
	// RoleAdmin has full access.
	RoleAdmin Role = "admin"
	// RoleAgency manages students, absences and check-ins across all
	// universities.
	RoleAgency Role = "agency"
	// RoleUniversity is read-only, scoped to a single university.
	RoleUniversity Role = "university"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAgency, RoleUniversity:
		return true
	}
	return false
}

// RequestIdentity is the resolved caller: who, which role, and, for
// university users, which university scope restricts their reads.
// Role and UniversityID are re-fetched from the durable store on every
// request; nothing here is taken from client-supplied claims.
type RequestIdentity struct {
	UserID       uuid.UUID
	Email        string
	Role         Role
	UniversityID *uuid.UUID
	TokenID      string
}

type (
	identityKey    struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Identity retrieves the resolved caller identity from the context.
func Identity(ctx context.Context) (RequestIdentity, bool) {
	ident, ok := ctx.Value(identityKey{}).(RequestIdentity)
	return ident, ok
}

// WithIdentity injects a resolved identity into the context.
func WithIdentity(ctx context.Context, ident RequestIdentity) context.Context {
	return context.WithValue(ctx, identityKey{}, ident)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (tests, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context so quarter-window and
// rate-limit logic can be tested deterministically.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
