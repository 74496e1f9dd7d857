package tenant_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/schema"
	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

// fakeProvider serves a fixed set of tenants and counts registry hits so
// tests can observe cache behavior.
type fakeProvider struct {
	tenants map[string]*tenant.Tenant
	err     error
	calls   atomic.Int64
}

func (p *fakeProvider) GetByIdentifier(_ context.Context, identifier string) (*tenant.Tenant, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	t, ok := p.tenants[identifier]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return t, nil
}

// fakeBinder records bound schemas and pairs every bind with a release.
type fakeBinder struct {
	err      error
	binds    atomic.Int64
	releases atomic.Int64
}

type boundSchemaKey struct{}

func (b *fakeBinder) Bind(ctx context.Context, schemaName string) (context.Context, func(), error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	b.binds.Add(1)
	return context.WithValue(ctx, boundSchemaKey{}, schemaName), func() { b.releases.Add(1) }, nil
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{tenants: map[string]*tenant.Tenant{
		"acme": newTestTenant("acme"),
		"beta": {Slug: "beta", SchemaName: "tenant_beta", Active: false},
	}}
}

func doRequest(handler http.Handler, host string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "http://"+host+"/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("active tenant is resolved and schema exposed", func(t *testing.T) {
		t.Parallel()

		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider())

		var resolved *tenant.Tenant
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resolved, _ = tenant.FromContext(r.Context())
		}))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tenant_acme", rec.Header().Get(tenant.SchemaHeader))
		require.NotNil(t, resolved)
		assert.Equal(t, "acme", resolved.Slug)
	})

	t.Run("inactive tenant indistinguishable from unknown", func(t *testing.T) {
		t.Parallel()

		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider())
		handler := mw(okHandler)

		inactive := doRequest(handler, "beta.example.com")
		unknown := doRequest(handler, "ghost.example.com")

		assert.Equal(t, http.StatusNotFound, inactive.Code)
		assert.Equal(t, http.StatusNotFound, unknown.Code)
		assert.Equal(t, inactive.Body.String(), unknown.Body.String())
		assert.Empty(t, inactive.Header().Get(tenant.SchemaHeader))
	})

	t.Run("excluded subdomain passes through untenanted", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider)

		var hadTenant bool
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hadTenant = tenant.FromContext(r.Context())
		}))

		rec := doRequest(handler, "api.example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, hadTenant)
		assert.Zero(t, provider.calls.Load())
	})

	t.Run("cache suppresses repeat registry lookups", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider,
			tenant.WithCacheTTL(time.Hour))
		handler := mw(okHandler)

		for i := 0; i < 5; i++ {
			doRequest(handler, "acme.example.com")
		}
		assert.Equal(t, int64(1), provider.calls.Load())
	})

	t.Run("deactivation takes effect once the entry is invalidated", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		cache := tenant.NewInMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })

		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider,
			tenant.WithCache(cache))
		handler := mw(okHandler)

		rec := doRequest(handler, "acme.example.com")
		require.Equal(t, http.StatusOK, rec.Code)

		// What the registry does on Deactivate: flip the record and
		// invalidate the cache key in the same operation.
		provider.tenants["acme"].Active = false
		cache.Delete(context.Background(), "acme")

		rec = doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("misses are cached negatively", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider)
		handler := mw(okHandler)

		for i := 0; i < 3; i++ {
			rec := doRequest(handler, "ghost.example.com")
			assert.Equal(t, http.StatusNotFound, rec.Code)
		}
		assert.Equal(t, int64(1), provider.calls.Load())
	})

	t.Run("registry failure returns server error", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{err: errors.New("connection refused")}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider)
		handler := mw(okHandler)

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("registry failures are not cached", func(t *testing.T) {
		t.Parallel()

		provider := &fakeProvider{err: errors.New("connection refused")}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider)
		handler := mw(okHandler)

		doRequest(handler, "acme.example.com")
		doRequest(handler, "acme.example.com")
		assert.Equal(t, int64(2), provider.calls.Load())
	})

	t.Run("binder pins schema and releases once", func(t *testing.T) {
		t.Parallel()

		binder := &fakeBinder{}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider(),
			tenant.WithBinder(binder))

		var bound string
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bound, _ = r.Context().Value(boundSchemaKey{}).(string)
		}))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "tenant_acme", bound)
		assert.Equal(t, int64(1), binder.binds.Load())
		assert.Equal(t, int64(1), binder.releases.Load())
	})

	t.Run("binder releases when the handler panics", func(t *testing.T) {
		t.Parallel()

		binder := &fakeBinder{}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider(),
			tenant.WithBinder(binder))
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("handler blew up")
		}))

		assert.Panics(t, func() { doRequest(handler, "acme.example.com") })
		assert.Equal(t, int64(1), binder.binds.Load())
		assert.Equal(t, int64(1), binder.releases.Load())
	})

	t.Run("binder releases when the request context is cancelled", func(t *testing.T) {
		t.Parallel()

		binder := &fakeBinder{}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider(),
			tenant.WithBinder(binder))

		ctx, cancel := context.WithCancel(context.Background())
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cancel()
			<-r.Context().Done()
		}))

		req := httptest.NewRequest(http.MethodGet, "http://acme.example.com/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, int64(1), binder.releases.Load())
	})

	t.Run("deactivation reaches fleet members sharing a redis cache", func(t *testing.T) {
		t.Parallel()

		cache, _ := newRedisCache(t)
		provider := newFakeProvider()
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider,
			tenant.WithCache(cache), tenant.WithCacheTTL(time.Hour))
		handler := mw(okHandler)

		rec := doRequest(handler, "acme.example.com")
		require.Equal(t, http.StatusOK, rec.Code)

		// Registry writes flip the record and delete the shared cache key
		// in the same operation. Without the delete, the stale entry would
		// keep the tenant resolvable for the rest of the hour-long TTL.
		provider.tenants["acme"].Active = false
		cache.Delete(context.Background(), "acme")

		rec = doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing schema is a server error, never a fallback", func(t *testing.T) {
		t.Parallel()

		binder := &fakeBinder{err: schema.ErrSchemaMissing}
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider(),
			tenant.WithBinder(binder))

		handlerRan := false
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handlerRan = true
		}))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, handlerRan)
		assert.Empty(t, rec.Header().Get(tenant.SchemaHeader))
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		t.Parallel()

		provider := newFakeProvider()
		mw := tenant.Middleware(tenant.NewSubdomainResolver(), provider,
			tenant.WithSkipPaths([]string{"/healthz"}))
		handler := mw(okHandler)

		req := httptest.NewRequest(http.MethodGet, "http://ghost.example.com/healthz", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Zero(t, provider.calls.Load())
	})

	t.Run("custom error handler is used", func(t *testing.T) {
		t.Parallel()

		mw := tenant.Middleware(tenant.NewSubdomainResolver(), newFakeProvider(),
			tenant.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				w.WriteHeader(http.StatusTeapot)
			}))
		handler := mw(okHandler)

		rec := doRequest(handler, "ghost.example.com")
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withTenant := func(t *tenant.Tenant) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
			})
		}
	}

	t.Run("allows authenticated request with active tenant", func(t *testing.T) {
		t.Parallel()

		gate := tenant.RequireTenant(func(r *http.Request) bool { return true }, nil)
		handler := withTenant(newTestTenant("acme"))(gate(okHandler))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects unauthenticated request", func(t *testing.T) {
		t.Parallel()

		gate := tenant.RequireTenant(func(r *http.Request) bool { return false }, nil)
		handler := withTenant(newTestTenant("acme"))(gate(okHandler))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects request without bound tenant", func(t *testing.T) {
		t.Parallel()

		gate := tenant.RequireTenant(nil, nil)
		rec := doRequest(gate(okHandler), "example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects inactive tenant", func(t *testing.T) {
		t.Parallel()

		inactive := newTestTenant("beta")
		inactive.Active = false

		gate := tenant.RequireTenant(nil, nil)
		handler := withTenant(inactive)(gate(okHandler))

		rec := doRequest(handler, "beta.example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("nil auth func skips identity check", func(t *testing.T) {
		t.Parallel()

		gate := tenant.RequireTenant(nil, nil)
		handler := withTenant(newTestTenant("acme"))(gate(okHandler))

		rec := doRequest(handler, "acme.example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
