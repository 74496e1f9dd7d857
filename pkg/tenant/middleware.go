package tenant

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// SchemaHeader is set on responses whenever a tenant schema was bound,
// as a debugging aid for operators tracing cross-tenant issues.
const SchemaHeader = "X-Tenant-Schema"

// Middleware resolves the tenant for each request and, when a binder is
// configured, pins the request's database access to the tenant schema.
// The stages run in a fixed order: resolve, bind, then the handler chain
// (where RequireTenant authorizes). Requests that carry no routing key
// (base domain, excluded subdomains, loopback) pass through untenanted.
func Middleware(resolver Resolver, provider Provider, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		cache:        NewInMemoryCache(),
		cacheTTL:     time.Hour,
		negativeTTL:  5 * time.Minute,
		errorHandler: defaultErrorHandler,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			key, err := resolver(r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			t, err := lookup(cfg, provider, r, key)
			if err != nil {
				if errors.Is(err, ErrRegistryUnavailable) {
					cfg.logger.ErrorContext(r.Context(), "tenant registry lookup failed",
						slog.String("slug", key), slog.Any("error", err))
				}
				cfg.errorHandler(w, r, err)
				return
			}

			serveBound(cfg, next, w, r, t)
		})
	}
}

// lookup runs the cache-then-registry resolution for one routing key.
func lookup(cfg *config, provider Provider, r *http.Request, key string) (*Tenant, error) {
	if cached, ok := cfg.cache.Get(r.Context(), key); ok {
		if cached == nil {
			return nil, ErrTenantNotFound
		}
		if !cached.IsActive() {
			return nil, ErrTenantInactive
		}
		return cached, nil
	}

	t, err := provider.GetByIdentifier(r.Context(), key)
	switch {
	case err == nil:
	case errors.Is(err, ErrTenantNotFound):
		cfg.cache.SetNegative(r.Context(), key, cfg.negativeTTL)
		return nil, ErrTenantNotFound
	default:
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}

	// Inactive records are cached too; the entry is invalidated explicitly
	// when the tenant is reactivated, so serving from cache stays safe.
	cfg.cache.Set(r.Context(), key, t, cfg.cacheTTL)

	if !t.IsActive() {
		return nil, ErrTenantInactive
	}
	return t, nil
}

// serveBound injects the tenant context, binds the schema for the request
// lifetime, and guarantees the unbind runs on every exit path.
func serveBound(cfg *config, next http.Handler, w http.ResponseWriter, r *http.Request, t *Tenant) {
	ctx := WithTenant(r.Context(), t)

	if cfg.binder != nil {
		bctx, release, err := cfg.binder.Bind(ctx, t.SchemaName)
		if err != nil {
			// A resolved tenant without a backing schema means the
			// registry and storage disagree. Never fall back to a
			// shared schema; fail loudly instead.
			cfg.logger.ErrorContext(ctx, "tenant schema bind failed",
				slog.String("slug", t.Slug),
				slog.String("schema", t.SchemaName),
				slog.Any("error", err))
			cfg.errorHandler(w, r, err)
			return
		}
		defer release()
		ctx = bctx
	}

	w.Header().Set(SchemaHeader, t.SchemaName)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// AuthFunc reports whether the request carries a valid identity. The token
// format and verification live outside this package.
type AuthFunc func(r *http.Request) bool

// RequireTenant is the access gate: it denies the request unless the
// caller is authenticated, a tenant is bound, and that tenant is active.
// All three conditions are evaluated once, synchronously, before the
// handler runs. A nil authenticated func skips the identity check for
// routes guarded elsewhere.
func RequireTenant(authenticated AuthFunc, errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authenticated != nil && !authenticated(r) {
				errorHandler(w, r, ErrNotAuthenticated)
				return
			}

			t, ok := FromContext(r.Context())
			if !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			if !t.IsActive() {
				errorHandler(w, r, ErrTenantInactive)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
