package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrorHandler renders tenancy errors to the client.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds middleware configuration.
type config struct {
	cache        Cache
	cacheTTL     time.Duration
	negativeTTL  time.Duration
	binder       Binder
	errorHandler ErrorHandler
	skipPaths    []string
	logger       *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithCache sets a custom cache implementation.
func WithCache(cache Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithCacheTTL sets the TTL for positive cache entries.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithNegativeCacheTTL sets the TTL for cached misses. It should stay well
// below the positive TTL.
func WithNegativeCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.negativeTTL = ttl
		}
	}
}

// WithBinder makes the middleware pin the request's database access to the
// resolved tenant's schema for the lifetime of the request.
func WithBinder(b Binder) Option {
	return func(c *config) { c.binder = b }
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) { c.errorHandler = handler }
}

// WithSkipPaths sets path prefixes that bypass tenant resolution.
func WithSkipPaths(paths []string) Option {
	return func(c *config) { c.skipPaths = paths }
}

// WithLogger sets the logger for schema-missing and registry failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// defaultErrorHandler maps the tenancy error taxonomy to HTTP statuses.
// Not-found and inactive are indistinguishable on the wire; schema and
// registry failures are server errors with no internal detail leaked.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrTenantInactive):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrNotAuthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
