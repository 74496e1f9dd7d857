package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantkit/pkg/pg"
	"github.com/dmitrymomot/tenantkit/pkg/schema"
	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

// SchemaProvisioner is the slice of the schema manager the registry needs
// to keep tenant records and their schemas in step.
type SchemaProvisioner interface {
	Exists(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, name string) error
	Drop(ctx context.Context, name string) error
	Migrate(ctx context.Context, name string) error
}

// Store is the Postgres-backed tenant registry. Tenant records live in the
// public schema; every write that changes resolution outcome invalidates
// the resolver cache in the same logical operation, so staleness after a
// deactivation is effectively zero rather than a full cache TTL.
type Store struct {
	pool    *pgxpool.Pool
	cache   tenant.Cache
	schemas SchemaProvisioner
	log     *slog.Logger
}

// New creates a registry store. cache may be nil when no resolver cache is
// in use (operator tooling); schemas may be nil when the caller handles
// provisioning itself.
func New(pool *pgxpool.Pool, cache tenant.Cache, schemas SchemaProvisioner, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, cache: cache, schemas: schemas, log: log}
}

const tenantColumns = `id, slug, schema_name, is_active, name, email, logo_url, primary_color, monthly_fee_cents, created_at, updated_at`

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.SchemaName, &t.Active, &t.Name, &t.Email,
		&t.Logo, &t.PrimaryColor, &t.MonthlyFee, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByIdentifier implements tenant.Provider: lookup by routing key.
// Inactive tenants are returned with Active=false; the resolution path
// decides how they surface.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE slug = $1", identifier))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by slug %q: %w", identifier, err)
	}
	return t, nil
}

// GetByID fetches a tenant record by its stable identifier.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE id = $1", id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return t, nil
}

// FindActiveBySlug returns the active tenant with the given routing key.
// Deactivated tenants are reported as not found so callers cannot
// distinguish them from nonexistent ones.
func (s *Store) FindActiveBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE slug = $1 AND is_active", slug))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("find active tenant %q: %w", slug, err)
	}
	return t, nil
}

// ListActive returns all active tenants ordered by slug.
func (s *Store) ListActive(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+tenantColumns+" FROM tenants WHERE is_active ORDER BY slug")
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var out []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	return out, nil
}

// CreateParams carries the administrative input for a new tenant. Business
// attributes are stored opaquely.
type CreateParams struct {
	Slug         string
	Name         string
	Email        string
	Logo         string
	PrimaryColor string
	MonthlyFee   int64
}

// Create registers a tenant and provisions its schema in one
// administrative action: the schema is created and fully migrated before
// the call returns, and a failure on either side rolls the other back so
// the registry and storage never disagree.
func (s *Store) Create(ctx context.Context, p CreateParams) (*tenant.Tenant, error) {
	if !tenant.ValidSlug(p.Slug) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlug, p.Slug)
	}

	schemaName := schema.Name(p.Slug)
	if !schema.ValidName(schemaName) {
		return nil, fmt.Errorf("%w: derived schema %q", ErrInvalidSlug, schemaName)
	}

	if s.schemas != nil {
		exists, err := s.schemas.Exists(ctx, schemaName)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: schema %q", ErrSlugTaken, schemaName)
		}
		if err := s.schemas.Create(ctx, schemaName); err != nil {
			return nil, err
		}
	}

	t, err := scanTenant(s.pool.QueryRow(ctx, `
		INSERT INTO tenants (slug, schema_name, name, email, logo_url, primary_color, monthly_fee_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+tenantColumns,
		p.Slug, schemaName, p.Name, p.Email, p.Logo, p.PrimaryColor, p.MonthlyFee))
	if err != nil {
		if s.schemas != nil {
			if dropErr := s.schemas.Drop(ctx, schemaName); dropErr != nil {
				s.log.ErrorContext(ctx, "orphaned schema after failed tenant insert",
					slog.String("schema", schemaName), slog.Any("error", dropErr))
			}
		}
		if pg.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %q", ErrSlugTaken, p.Slug)
		}
		return nil, fmt.Errorf("insert tenant %q: %w", p.Slug, err)
	}

	if s.schemas != nil {
		if err := s.schemas.Migrate(ctx, schemaName); err != nil {
			// Roll the whole provisioning back rather than leave a
			// half-migrated tenant resolvable.
			if _, delErr := s.pool.Exec(ctx, "DELETE FROM tenants WHERE id = $1", t.ID); delErr != nil {
				s.log.ErrorContext(ctx, "orphaned tenant record after failed migration",
					slog.String("slug", p.Slug), slog.Any("error", delErr))
			}
			if dropErr := s.schemas.Drop(ctx, schemaName); dropErr != nil {
				s.log.ErrorContext(ctx, "orphaned schema after failed migration",
					slog.String("schema", schemaName), slog.Any("error", dropErr))
			}
			return nil, err
		}
	}

	s.invalidate(ctx, p.Slug)
	s.log.InfoContext(ctx, "tenant created",
		slog.String("slug", t.Slug), slog.String("schema", t.SchemaName))
	return t, nil
}

// Deactivate soft-deletes a tenant and invalidates its cache entry in the
// same operation. The schema and its data stay untouched; hard deletion
// is intentionally not offered while tenant data exists.
func (s *Store) Deactivate(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE tenants SET is_active = false, updated_at = now() WHERE slug = $1", slug)
	if err != nil {
		return fmt.Errorf("deactivate tenant %q: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}

	s.invalidate(ctx, slug)
	s.log.InfoContext(ctx, "tenant deactivated", slog.String("slug", slug))
	return nil
}

// Activate re-enables a deactivated tenant and invalidates its cache entry.
func (s *Store) Activate(ctx context.Context, slug string) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE tenants SET is_active = true, updated_at = now() WHERE slug = $1", slug)
	if err != nil {
		return fmt.Errorf("activate tenant %q: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}

	s.invalidate(ctx, slug)
	s.log.InfoContext(ctx, "tenant activated", slog.String("slug", slug))
	return nil
}

// Rename changes a tenant's routing key and renames its schema in the
// same transaction, then invalidates both the old and new cache keys.
func (s *Store) Rename(ctx context.Context, oldSlug, newSlug string) error {
	if !tenant.ValidSlug(newSlug) {
		return fmt.Errorf("%w: %q", ErrInvalidSlug, newSlug)
	}

	oldSchema := schema.Name(oldSlug)
	newSchema := schema.Name(newSlug)
	if !schema.ValidName(newSchema) {
		return fmt.Errorf("%w: derived schema %q", ErrInvalidSlug, newSchema)
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			"UPDATE tenants SET slug = $1, schema_name = $2, updated_at = now() WHERE slug = $3",
			newSlug, newSchema, oldSlug)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return tenant.ErrTenantNotFound
		}
		_, err = tx.Exec(ctx, "ALTER SCHEMA "+schema.QuoteIdent(oldSchema)+" RENAME TO "+schema.QuoteIdent(newSchema))
		return err
	})
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return err
		}
		if pg.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %q", ErrSlugTaken, newSlug)
		}
		return fmt.Errorf("rename tenant %q to %q: %w", oldSlug, newSlug, err)
	}

	s.invalidate(ctx, oldSlug)
	s.invalidate(ctx, newSlug)
	s.log.InfoContext(ctx, "tenant renamed",
		slog.String("old_slug", oldSlug), slog.String("new_slug", newSlug))
	return nil
}

// Update stores new business attributes and invalidates the cache entry so
// the next resolution sees them.
func (s *Store) Update(ctx context.Context, t *tenant.Tenant) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants
		SET name = $2, email = $3, logo_url = $4, primary_color = $5, monthly_fee_cents = $6, updated_at = now()
		WHERE id = $1`,
		t.ID, t.Name, t.Email, t.Logo, t.PrimaryColor, t.MonthlyFee)
	if err != nil {
		return fmt.Errorf("update tenant %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}

	s.invalidate(ctx, t.Slug)
	return nil
}

func (s *Store) invalidate(ctx context.Context, slug string) {
	if s.cache != nil {
		s.cache.Delete(ctx, slug)
	}
}
