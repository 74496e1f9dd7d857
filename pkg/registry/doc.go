// Package registry is the persistent store of tenant records: identity,
// routing key, schema name and active flag, plus the opaque business
// attributes the CRUD layer owns.
//
// The Store implements tenant.Provider for the resolution path and keeps
// two invariants for the rest of the system:
//
//   - registry and storage never disagree: Create provisions and migrates
//     the tenant schema in the same administrative action, rolling back on
//     partial failure; Rename moves the record and the schema in one
//     transaction
//   - the resolver cache is invalidated inside every write that changes a
//     resolution outcome (create, deactivate, activate, rename, update),
//     not left to expire by TTL
//
// Tenants are never hard-deleted while their schema holds data; Deactivate
// soft-deletes, after which the resolution path reports the tenant exactly
// like a nonexistent one.
package registry
