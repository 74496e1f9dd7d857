// Package migrator is the operator-facing batch process that provisions
// and migrates tenant schemas across the fleet.
//
// A run selects either all active tenants or a single named one, then for
// each tenant: checks whether the schema exists, skips it with a warning
// (or drops it when force is set), creates it, and applies the full
// migration history inside it. One tenant's failure is recorded and the
// batch continues; only a structural failure before the batch starts
// (the registry being unreachable) aborts the run.
//
// After the batch, unless skipped, every migrated schema is bound and its
// migration history counted as a cheap isolation check; failing tenants
// are flagged in the report without retroactively failing the batch.
//
// Dry-run computes and reports intended actions without touching storage.
package migrator
