package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is a pooled connection whose search_path is pinned to one tenant
// schema. It is request-scoped: acquired at bind time, released when the
// request finishes. The session default search_path (whatever the pool's
// connection config establishes) is restored before the connection goes
// back to the pool.
type Conn struct {
	conn    *pgxpool.Conn
	schema  string
	release sync.Once
}

// Schema returns the schema this connection is bound to.
func (c *Conn) Schema() string { return c.schema }

// Exec runs a statement against the bound schema.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

// Query runs a query against the bound schema.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query against the bound schema.
func (c *Conn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction on the bound connection.
func (c *Conn) Begin(ctx context.Context) (pgx.Tx, error) {
	return c.conn.Begin(ctx)
}

// Release restores the connection's search_path and returns it to the
// pool. It is safe to call more than once. If the reset fails the
// underlying connection is closed instead of returned, so the pool never
// hands a tenant-bound connection to another request.
func (c *Conn) Release() {
	if c == nil {
		return
	}
	c.release.Do(func() {
		// RESET restores the session default from the connection config,
		// which may itself carry a custom search_path.
		if _, err := c.conn.Exec(context.Background(), "RESET search_path"); err != nil {
			_ = c.conn.Hijack().Close(context.Background())
			return
		}
		c.conn.Release()
	})
}

// Bind acquires a connection from the pool and pins it to schemaName.
// Returns ErrSchemaMissing when the schema does not exist; it never falls
// back to a default schema, since that would silently cross tenant
// boundaries.
func Bind(ctx context.Context, pool *pgxpool.Pool, schemaName string) (*Conn, error) {
	if !ValidName(schemaName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchemaName, schemaName)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SET search_path TO "+QuoteIdent(schemaName)); err != nil {
		conn.Release()
		return nil, fmt.Errorf("set search_path: %w", err)
	}

	// current_schema() is NULL when search_path references a schema that
	// does not exist, which is exactly the provisioning-race case.
	var current *string
	if err := conn.QueryRow(ctx, "SELECT current_schema()").Scan(&current); err != nil {
		resetAndRelease(conn)
		return nil, fmt.Errorf("verify search_path: %w", err)
	}
	if current == nil || *current != schemaName {
		resetAndRelease(conn)
		return nil, fmt.Errorf("%w: %q", ErrSchemaMissing, schemaName)
	}

	return &Conn{conn: conn, schema: schemaName}, nil
}

func resetAndRelease(conn *pgxpool.Conn) {
	if _, err := conn.Exec(context.Background(), "RESET search_path"); err != nil {
		_ = conn.Hijack().Close(context.Background())
		return
	}
	conn.Release()
}

type connKey struct{}

// WithConn stores a bound connection in the context so data-access code
// receives the binding explicitly instead of relying on driver magic.
func WithConn(ctx context.Context, c *Conn) context.Context {
	return context.WithValue(ctx, connKey{}, c)
}

// ConnFromContext retrieves the bound connection for this request.
func ConnFromContext(ctx context.Context) (*Conn, bool) {
	c, ok := ctx.Value(connKey{}).(*Conn)
	return c, ok
}

// MustConnFromContext panics when no connection is bound. Use only in
// handlers behind the tenant middleware.
func MustConnFromContext(ctx context.Context) *Conn {
	c, ok := ConnFromContext(ctx)
	if !ok {
		panic("schema: no bound connection in context")
	}
	return c
}

// PoolBinder adapts a pgx pool to the tenant middleware's Binder
// interface: each request gets its own pinned connection carried in the
// request context, released by the middleware on every exit path.
type PoolBinder struct {
	pool *pgxpool.Pool
}

// NewPoolBinder creates a binder over the shared connection pool.
func NewPoolBinder(pool *pgxpool.Pool) *PoolBinder {
	return &PoolBinder{pool: pool}
}

// Bind implements the tenant middleware Binder contract.
func (b *PoolBinder) Bind(ctx context.Context, schemaName string) (context.Context, func(), error) {
	c, err := Bind(ctx, b.pool, schemaName)
	if err != nil {
		return nil, nil, err
	}
	return WithConn(ctx, c), c.Release, nil
}
