package tenant

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// binding is the request-scoped record of a resolved tenant. It lives only
// in the request context, never in package state, so two requests handled
// concurrently by the same process cannot observe each other's tenant.
type binding struct {
	tenant     *Tenant
	resolvedAt time.Time
}

// WithTenant returns a context carrying the resolved tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, &binding{tenant: t, resolvedAt: time.Now()})
}

// FromContext retrieves the tenant from the context.
// Returns nil, false if no tenant is bound.
func FromContext(ctx context.Context) (*Tenant, bool) {
	b, ok := ctx.Value(contextKey{}).(*binding)
	if !ok || b.tenant == nil {
		return nil, false
	}
	return b.tenant, true
}

// IDFromContext retrieves just the tenant ID from the context.
func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return uuid.UUID{}, false
	}
	return t.ID, true
}

// SchemaFromContext retrieves the bound tenant's schema name.
func SchemaFromContext(ctx context.Context) (string, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return "", false
	}
	return t.SchemaName, true
}

// MustFromContext retrieves the tenant from the context.
// Panics if no tenant is bound. Use only behind RequireTenant.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return t
}

// LoggerExtractor makes the logger annotate every record with the tenant
// ID and schema whenever a tenant is bound to the context.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if t, ok := FromContext(ctx); ok {
			return slog.Group("tenant",
				slog.String("id", t.ID.String()),
				slog.String("schema", t.SchemaName),
			), true
		}
		return slog.Attr{}, false
	}
}
