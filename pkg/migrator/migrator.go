package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

// TenantSource selects the tenants a batch run operates on.
type TenantSource interface {
	ListActive(ctx context.Context) ([]tenant.Tenant, error)
	FindActiveBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

// SchemaManager is the slice of schema lifecycle operations the
// orchestrator drives.
type SchemaManager interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
	Migrate(ctx context.Context, name string) error
	AppliedMigrations(ctx context.Context, name string) (int, error)
}

// Options control a batch run.
type Options struct {
	// DryRun reports intended actions without touching storage.
	DryRun bool
	// Force drops and recreates schemas that already exist. Destructive;
	// callers must require explicit operator opt-in.
	Force bool
	// SkipValidation omits the post-migration isolation check.
	SkipValidation bool
	// TenantSlug restricts the run to one tenant. Empty means all active
	// tenants.
	TenantSlug string
}

// Runner applies schema migrations across the tenant fleet. One tenant's
// failure never aborts the batch; outcomes are collected into a Report
// for operator follow-up.
type Runner struct {
	tenants TenantSource
	schemas SchemaManager
	log     *slog.Logger
}

// NewRunner creates a batch migration runner.
func NewRunner(tenants TenantSource, schemas SchemaManager, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{tenants: tenants, schemas: schemas, log: log}
}

// Run executes the batch. It returns an error only on structural failure
// that prevented the batch from running at all (tenant selection failed);
// per-tenant failures are recorded in the report instead.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()

	targets, err := r.selectTenants(ctx, opts.TenantSlug)
	if err != nil {
		return nil, err
	}

	r.log.InfoContext(ctx, "starting schema migration batch",
		slog.Int("tenants", len(targets)),
		slog.Bool("dry_run", opts.DryRun),
		slog.Bool("force", opts.Force))

	report := &Report{DryRun: opts.DryRun}
	for _, t := range targets {
		report.Results = append(report.Results, r.migrateOne(ctx, t, opts))
	}

	if !opts.DryRun && !opts.SkipValidation {
		r.validate(ctx, report)
	}

	report.Elapsed = time.Since(start)
	r.log.InfoContext(ctx, "schema migration batch finished",
		slog.Int("migrated", report.Count(OutcomeMigrated)),
		slog.Int("skipped", report.Count(OutcomeSkipped)),
		slog.Int("failed", report.Count(OutcomeFailed)),
		slog.Duration("elapsed", report.Elapsed))

	return report, nil
}

func (r *Runner) selectTenants(ctx context.Context, slug string) ([]tenant.Tenant, error) {
	if slug != "" {
		t, err := r.tenants.FindActiveBySlug(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("select tenant %q: %w", slug, err)
		}
		return []tenant.Tenant{*t}, nil
	}

	tenants, err := r.tenants.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// migrateOne runs the per-tenant algorithm. Every failure path returns a
// failed result instead of an error so the batch keeps going.
func (r *Runner) migrateOne(ctx context.Context, t tenant.Tenant, opts Options) Result {
	res := Result{Slug: t.Slug, SchemaName: t.SchemaName}

	exists, err := r.schemas.Exists(ctx, t.SchemaName)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	if exists && !opts.Force {
		res.Outcome = OutcomeSkipped
		res.Reason = "schema already exists, use force to recreate"
		r.log.WarnContext(ctx, "schema exists, skipping",
			slog.String("slug", t.Slug), slog.String("schema", t.SchemaName))
		return res
	}

	if opts.DryRun {
		res.Outcome = OutcomeWouldMigrate
		if exists {
			res.Reason = "would drop and recreate schema, then apply migrations"
		} else {
			res.Reason = "would create schema and apply migrations"
		}
		return res
	}

	if exists {
		if err := r.schemas.Drop(ctx, t.SchemaName); err != nil {
			res.Outcome = OutcomeFailed
			res.Err = err
			return res
		}
	}

	if err := r.schemas.Create(ctx, t.SchemaName); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	if err := r.schemas.Migrate(ctx, t.SchemaName); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		r.log.ErrorContext(ctx, "tenant migration failed",
			slog.String("slug", t.Slug), slog.Any("error", err))
		return res
	}

	res.Outcome = OutcomeMigrated
	return res
}

// validate runs the cheap read-only isolation check against every
// successfully migrated schema: it must be queryable and carry a
// non-empty migration history. Failing tenants are flagged, not failed.
func (r *Runner) validate(ctx context.Context, report *Report) {
	for i := range report.Results {
		res := &report.Results[i]
		if res.Outcome != OutcomeMigrated {
			continue
		}

		count, err := r.schemas.AppliedMigrations(ctx, res.SchemaName)
		switch {
		case err != nil:
			res.ValidationErr = err
		case count == 0:
			res.ValidationErr = fmt.Errorf("schema %q has no applied migrations", res.SchemaName)
		}
		if res.ValidationErr != nil {
			r.log.WarnContext(ctx, "isolation validation failed",
				slog.String("slug", res.Slug), slog.Any("error", res.ValidationErr))
		}
	}
}
