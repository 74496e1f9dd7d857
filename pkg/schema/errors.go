package schema

import "errors"

var (
	// ErrSchemaMissing means a tenant resolved in the registry has no
	// backing schema. This is a registry/storage inconsistency, never a
	// reason to fall back to a shared schema.
	ErrSchemaMissing = errors.New("tenant schema does not exist")

	// ErrSchemaExists is returned when creating a schema that is already
	// present.
	ErrSchemaExists = errors.New("schema already exists")

	// ErrInvalidSchemaName is returned for names that fail identifier
	// validation.
	ErrInvalidSchemaName = errors.New("invalid schema name")

	// ErrNoConnInContext is returned when a data-access call runs outside
	// a bound request.
	ErrNoConnInContext = errors.New("no bound connection in context")

	// ErrFailedToApplyMigrations wraps goose failures for one schema.
	ErrFailedToApplyMigrations = errors.New("failed to apply schema migrations")

	// ErrMigrationsDirNotFound is returned when the migrations directory
	// is missing.
	ErrMigrationsDirNotFound = errors.New("migrations directory not found")
)
