package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is a single customer whose data lives in its own Postgres schema.
// Only the fields the isolation path needs are interpreted here; business
// attributes (name, contact, branding, fee) are carried opaquely for the
// CRUD layer.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Slug       string    `json:"slug"`
	SchemaName string    `json:"schema_name"`
	Active     bool      `json:"active"`

	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Logo         string    `json:"logo_url"`
	PrimaryColor string    `json:"primary_color"`
	MonthlyFee   int64     `json:"monthly_fee_cents"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsActive implements Activatable.
func (t *Tenant) IsActive() bool { return t.Active }

// Activatable is the capability interface for entities that support
// soft-deactivation. Code that filters by activity checks for this
// interface instead of probing struct fields reflectively.
type Activatable interface {
	IsActive() bool
}

// Provider loads tenant records from the registry by routing key (slug).
// Implementations must return ErrTenantNotFound when no tenant matches.
// Inactive tenants are returned as-is; the resolution path decides how
// they are surfaced.
type Provider interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Tenant, error)
}

// Binder pins the request's data access to one tenant schema. Bind returns
// a derived context carrying the bound connection and a release function
// that must run when the request finishes, on every exit path.
//
// Implementations must fail with a schema-missing error when the schema
// does not exist rather than falling back to a shared schema.
type Binder interface {
	Bind(ctx context.Context, schemaName string) (context.Context, func(), error)
}

// ResolvedAtFrom reports when the tenant in ctx was resolved, or the zero
// time when no tenant is bound.
func ResolvedAtFrom(ctx context.Context) time.Time {
	b, ok := ctx.Value(contextKey{}).(*binding)
	if !ok {
		return time.Time{}
	}
	return b.resolvedAt
}
