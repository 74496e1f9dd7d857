// server is an example API binary wiring the full isolation pipeline:
// every request is resolved to a tenant by subdomain, bound to that
// tenant's schema for its lifetime, and gated before business handlers
// run. Business CRUD is intentionally absent; the handlers here only
// demonstrate (and probe) the isolation boundary.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tenantkit/pkg/config"
	"github.com/dmitrymomot/tenantkit/pkg/environment"
	"github.com/dmitrymomot/tenantkit/pkg/httpserver"
	"github.com/dmitrymomot/tenantkit/pkg/logger"
	"github.com/dmitrymomot/tenantkit/pkg/pg"
	"github.com/dmitrymomot/tenantkit/pkg/redis"
	"github.com/dmitrymomot/tenantkit/pkg/registry"
	"github.com/dmitrymomot/tenantkit/pkg/requestid"
	"github.com/dmitrymomot/tenantkit/pkg/schema"
	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

type appConfig struct {
	DB               pg.Config
	Redis            redis.Config
	HTTP             httpserver.Config
	Environment      string `env:"APP_ENV" envDefault:"development"`
	TenantMigrations string `env:"TENANT_MIGRATIONS_PATH" envDefault:"migrations/tenant"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(
		logger.WithEnvironment(cfg.Environment, "tenantkit-server"),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			environment.LoggerExtractor(),
			tenant.LoggerExtractor(),
		),
	)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	// Registry migrations run in the public schema before serving;
	// tenant schemas are migrated out-of-band by tenantctl.
	if err := pg.Migrate(ctx, pool, cfg.DB, log); err != nil {
		return fmt.Errorf("registry migrations: %w", err)
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	cache := tenant.NewRedisCache(redisClient, "")
	schemas := schema.NewManager(pool, cfg.TenantMigrations, schema.WithManagerLogger(log))
	store := registry.New(pool, cache, schemas, log)
	binder := schema.NewPoolBinder(pool)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(environment.Middleware(environment.Environment(cfg.Environment)))
	r.Use(tenant.Middleware(
		tenant.NewSubdomainResolver(),
		store,
		tenant.WithCache(cache),
		tenant.WithBinder(binder),
		tenant.WithLogger(log),
		tenant.WithSkipPaths([]string{"/healthz"}),
	))

	r.Get("/healthz", healthz(pg.Healthcheck(pool), redis.Healthcheck(redisClient)))

	// Routes below the gate run with a tenant bound; everything else is
	// non-tenant routing (marketing pages, operator endpoints, ...).
	r.Group(func(r chi.Router) {
		r.Use(tenant.RequireTenant(nil, nil))
		r.Get("/whoami", whoami)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := tenant.FromContext(r.Context()); ok {
			http.Redirect(w, r, "/whoami", http.StatusFound)
			return
		}
		fmt.Fprintln(w, "no tenant: served by shared routing")
	})

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, r)
}

// whoami echoes the bound tenant and asks Postgres which schema the
// request's connection is actually pinned to. The two must always agree;
// it doubles as a live isolation probe.
func whoami(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	conn := schema.MustConnFromContext(r.Context())

	var current string
	if err := conn.QueryRow(r.Context(), "SELECT current_schema()").Scan(&current); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "tenant=%s schema=%s current_schema=%s\n", t.Slug, t.SchemaName, current)
}

func healthz(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var errs []error
		for _, check := range checks {
			errs = append(errs, check(r.Context()))
		}
		if err := errors.Join(errs...); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	}
}
