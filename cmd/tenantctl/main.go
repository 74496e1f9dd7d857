// tenantctl is the operator tool for the tenant fleet: it provisions new
// tenants, applies schema migrations across all tenant schemas, and
// soft-deactivates tenants.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantkit/pkg/config"
	"github.com/dmitrymomot/tenantkit/pkg/logger"
	"github.com/dmitrymomot/tenantkit/pkg/pg"
	"github.com/dmitrymomot/tenantkit/pkg/redis"
	"github.com/dmitrymomot/tenantkit/pkg/registry"
	"github.com/dmitrymomot/tenantkit/pkg/schema"
	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

var rootCmd = &cobra.Command{
	Use:   "tenantctl",
	Short: "Operator tooling for schema-per-tenant fleets",
	Long: `tenantctl manages the tenant registry and the per-tenant Postgres
schemas behind it.

Connection settings come from the environment (PG_CONN_URL et al.), with
an optional .env file in the working directory.

Commands:
  migrate     Create and migrate tenant schemas across the fleet
  create      Register a tenant and provision its schema
  deactivate  Soft-deactivate a tenant (data is kept)
  list        List active tenants and their schemas`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the shared dependencies each subcommand needs.
type app struct {
	pool    *pgxpool.Pool
	store   *registry.Store
	schemas *schema.Manager
	log     *slog.Logger
}

type cliConfig struct {
	DB               pg.Config
	Redis            redis.Config
	TenantMigrations string `env:"TENANT_MIGRATIONS_PATH" envDefault:"migrations/tenant"`
	Environment      string `env:"APP_ENV" envDefault:"development"`
}

// setup connects to the registry database. A connection failure here is a
// structural failure: no subcommand can do anything without the registry.
func setup(ctx context.Context) (*app, func(), error) {
	var cfg cliConfig
	if err := config.Load(&cfg); err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.WithEnvironment(cfg.Environment, "tenantctl"))

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to registry database: %w", err)
	}

	// The serving fleet resolves through a shared Redis cache, so registry
	// writes made here must invalidate the same cache. Without it a
	// deactivated tenant would keep resolving until its entry expires.
	var cache tenant.Cache
	closeFn := pool.Close
	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		log.WarnContext(ctx, "redis unavailable, resolver cache entries will not be invalidated",
			slog.Any("error", err))
	} else {
		cache = tenant.NewRedisCache(redisClient, "")
		closeFn = func() {
			_ = redisClient.Close()
			pool.Close()
		}
	}

	schemas := schema.NewManager(pool, cfg.TenantMigrations, schema.WithManagerLogger(log))
	store := registry.New(pool, cache, schemas, log)

	return &app{pool: pool, store: store, schemas: schemas, log: log}, closeFn, nil
}
