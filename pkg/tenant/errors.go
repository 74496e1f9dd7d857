package tenant

import "errors"

var (
	// ErrTenantNotFound is returned when no tenant matches a routing key.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive is returned when a resolved tenant has been
	// deactivated. The HTTP layer surfaces it identically to
	// ErrTenantNotFound so deactivated tenants are not discoverable.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrNoTenantInContext is returned when a handler that requires a
	// bound tenant runs without one.
	ErrNoTenantInContext = errors.New("no tenant in context")

	// ErrRegistryUnavailable wraps backing-store failures during
	// resolution. Unlike a not-found result it is a server error.
	ErrRegistryUnavailable = errors.New("tenant registry unavailable")

	// ErrNotAuthenticated is returned by the access gate when the caller
	// carries no valid identity.
	ErrNotAuthenticated = errors.New("not authenticated")
)
