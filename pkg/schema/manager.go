package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DefaultVersionTable is where goose records applied migrations, created
// inside each tenant schema so every tenant carries its own history.
const DefaultVersionTable = "schema_migrations"

// gooseMu serializes goose runs; goose configures dialect, logger and
// table name through package globals.
var gooseMu sync.Mutex

// Manager performs schema lifecycle operations for the migration
// orchestrator and the provisioning path: existence checks, create/drop,
// and applying the goose migration history inside one schema.
type Manager struct {
	pool          *pgxpool.Pool
	migrationsDir string
	versionTable  string
	log           *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithVersionTable overrides the goose version table name.
func WithVersionTable(table string) ManagerOption {
	return func(m *Manager) {
		if table != "" {
			m.versionTable = table
		}
	}
}

// WithManagerLogger sets the logger for migration output.
func WithManagerLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager creates a schema manager applying migrations from
// migrationsDir.
func NewManager(pool *pgxpool.Pool, migrationsDir string, opts ...ManagerOption) *Manager {
	m := &Manager{
		pool:          pool,
		migrationsDir: migrationsDir,
		versionTable:  DefaultVersionTable,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists reports whether the schema is present in the backing store.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}

	var exists bool
	err := m.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)",
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check schema %q: %w", name, err)
	}
	return exists, nil
}

// Create provisions an empty schema. Fails with ErrSchemaExists when the
// schema is already present.
func (m *Manager) Create(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}

	if _, err := m.pool.Exec(ctx, "CREATE SCHEMA "+QuoteIdent(name)); err != nil {
		if isDuplicateSchema(err) {
			return fmt.Errorf("%w: %q", ErrSchemaExists, name)
		}
		return fmt.Errorf("create schema %q: %w", name, err)
	}

	m.log.InfoContext(ctx, "schema created", slog.String("schema", name))
	return nil
}

// Drop removes the schema and everything in it. Destructive; callers gate
// this behind explicit operator opt-in.
func (m *Manager) Drop(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}

	if _, err := m.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+QuoteIdent(name)+" CASCADE"); err != nil {
		return fmt.Errorf("drop schema %q: %w", name, err)
	}

	m.log.InfoContext(ctx, "schema dropped", slog.String("schema", name))
	return nil
}

// Migrate applies the full migration history inside the named schema.
// goose needs a database/sql handle, so a dedicated connection config with
// search_path pinned to the schema bridges the pgx pool to the standard
// library interface.
func (m *Manager) Migrate(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidSchemaName, name)
	}
	if _, err := os.Stat(m.migrationsDir); err != nil {
		if os.IsNotExist(err) {
			return errors.Join(ErrMigrationsDirNotFound, err)
		}
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	connCfg := m.pool.Config().ConnConfig.Copy()
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	connCfg.RuntimeParams["search_path"] = name

	db := sql.OpenDB(stdlib.GetConnector(*connCfg))
	defer func() {
		if err := db.Close(); err != nil {
			m.log.ErrorContext(ctx, "failed to close migration connection", slog.Any("error", err))
		}
	}()

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(newSlogAdapter(ctx, m.log))
	goose.SetTableName(m.versionTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if err := goose.UpContext(ctx, db, m.migrationsDir); err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	return nil
}

// AppliedMigrations binds the schema and counts its recorded migrations.
// Used by the post-migration isolation check: a freshly migrated schema
// must be queryable and carry a non-empty history.
func (m *Manager) AppliedMigrations(ctx context.Context, name string) (int, error) {
	conn, err := Bind(ctx, m.pool, name)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	var count int
	err = conn.QueryRow(ctx, "SELECT count(*) FROM "+QuoteIdent(m.versionTable)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count migrations in %q: %w", name, err)
	}
	return count, nil
}

// isDuplicateSchema detects SQLSTATE 42P06 (duplicate_schema).
func isDuplicateSchema(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "42P06"
}

// migrateSlogAdapter routes goose's printf-style output through slog.
type migrateSlogAdapter struct {
	ctx context.Context
	log *slog.Logger
}

func newSlogAdapter(ctx context.Context, log *slog.Logger) goose.Logger {
	return &migrateSlogAdapter{ctx: ctx, log: log}
}

func (a *migrateSlogAdapter) Fatalf(format string, v ...any) {
	a.log.ErrorContext(a.ctx, fmt.Sprintf(format, v...))
}

func (a *migrateSlogAdapter) Printf(format string, v ...any) {
	a.log.InfoContext(a.ctx, fmt.Sprintf(format, v...))
}
