// Package tenant maps inbound HTTP requests to exactly one tenant and keeps
// that tenant's database schema bound for the lifetime of the request.
//
// The package is the request-side half of schema-per-tenant isolation: it
// extracts a routing key (the subdomain label) from the Host header, looks
// the tenant up through a TTL-bounded cache in front of the registry, binds
// the request to the tenant's Postgres schema, and gates business handlers
// behind an authorization check.
//
// # Architecture
//
// The pipeline is built from four pieces, wired by Middleware:
//
//  1. Resolver - derives a routing key from the request; infrastructure
//     hosts (www, api, admin, ...) and loopback never resolve to a tenant
//  2. Provider - loads the tenant record from the registry
//  3. Cache - TTL cache in front of the Provider, with negative caching
//     of misses and explicit invalidation on registry writes
//  4. Binder - pins the request's database access to the tenant schema,
//     releasing the binding on every exit path
//
// Within a request the order is fixed: resolution precedes binding, binding
// precedes authorization (RequireTenant), authorization precedes the
// handler. Each stage's postcondition is the next stage's precondition.
//
// # Usage
//
//	import "github.com/dmitrymomot/tenantkit/pkg/tenant"
//
//	resolver := tenant.NewSubdomainResolver()
//	mw := tenant.Middleware(resolver, registryStore,
//		tenant.WithBinder(schema.NewPoolBinder(pool)),
//		tenant.WithCache(tenant.NewRedisCache(redisClient, "")),
//		tenant.WithSkipPaths([]string{"/healthz"}),
//	)
//
//	r := chi.NewRouter()
//	r.Use(mw)
//	r.Group(func(r chi.Router) {
//		r.Use(tenant.RequireTenant(authFn, nil))
//		r.Get("/students", listStudents)
//	})
//
// Handlers read the bound tenant with FromContext and run queries through
// the connection stored in the request context by the binder; they never
// name a schema themselves.
//
// # Error Handling
//
// Resolution and binding failures are distinguishable error values so the
// HTTP layer can map them without string inspection:
//
//   - ErrTenantNotFound, ErrTenantInactive: surfaced as 404; deactivated
//     tenants are indistinguishable from nonexistent ones on the wire
//   - ErrRegistryUnavailable: backing-store failure, surfaced as 500
//   - schema.ErrSchemaMissing (from the binder): registry/storage
//     inconsistency, surfaced as 500 and logged at error level
//
// # Concurrency
//
// The resolved tenant and the bound connection live only in the request
// context, never in package state, so concurrent requests on one process
// can be bound to different schemas without interference.
package tenant
