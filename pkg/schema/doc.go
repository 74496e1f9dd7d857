// Package schema owns the storage side of schema-per-tenant isolation:
// deterministic schema naming, request-scoped binding of pooled
// connections to one schema, and schema lifecycle operations (create,
// drop, migrate) used by the provisioning and migration tooling.
//
// # Naming
//
// A tenant's schema name is derived from its routing key: "tenant_" plus
// the slug with hyphens normalized to underscores. Name and Slug convert
// in both directions; ValidName guards every identifier before it reaches
// DDL.
//
// # Binding
//
// Bind pins a pooled connection's search_path to a schema and verifies
// the schema actually exists (current_schema() returns NULL otherwise),
// failing with ErrSchemaMissing instead of silently reading from public.
// The binding travels in the request context via WithConn; Conn.Release
// restores the search_path before the connection returns to the pool and
// closes the connection outright if the restore fails.
//
//	c, err := schema.Bind(ctx, pool, "tenant_acme")
//	if err != nil { ... }
//	defer c.Release()
//	rows, err := c.Query(ctx, "SELECT id, name FROM students")
//
// PoolBinder adapts Bind to the tenant middleware.
//
// # Lifecycle
//
// Manager wraps existence checks, CREATE/DROP SCHEMA, and goose migration
// runs pinned inside one schema. Each tenant schema carries its own
// migration history table, so per-tenant state is self-describing.
package schema
