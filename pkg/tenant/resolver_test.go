package tenant_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

func TestSubdomainResolver(t *testing.T) {
	t.Parallel()

	resolve := tenant.NewSubdomainResolver()

	t.Run("extracts routing key from host", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "https://acme.example.com/students", nil)
		req.Host = "acme.example.com"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	})

	t.Run("strips port", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "http://acme.example.com:8080/", nil)
		req.Host = "acme.example.com:8080"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	})

	t.Run("normalizes case", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "https://ACME.Example.COM/", nil)
		req.Host = "ACME.Example.COM"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	})

	t.Run("returns empty for base domain", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "https://example.com/", nil)
		req.Host = "example.com"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Empty(t, key)
	})

	t.Run("excluded subdomains never resolve", func(t *testing.T) {
		t.Parallel()

		for _, sub := range []string{"www", "api", "admin", "static", "media", "mail", "ftp"} {
			req := httptest.NewRequest("GET", "https://"+sub+".example.com/", nil)
			req.Host = sub + ".example.com"

			key, err := resolve(req)
			require.NoError(t, err)
			assert.Empty(t, key, "subdomain %q must not resolve", sub)
		}
	})

	t.Run("loopback hosts never resolve", func(t *testing.T) {
		t.Parallel()

		for _, host := range []string{"localhost", "localhost:3000", "127.0.0.1", "127.0.0.1:8080"} {
			req := httptest.NewRequest("GET", "http://example.com/", nil)
			req.Host = host

			key, err := resolve(req)
			require.NoError(t, err)
			assert.Empty(t, key, "host %q must not resolve", host)
		}
	})

	t.Run("malformed hosts resolve to no tenant", func(t *testing.T) {
		t.Parallel()

		for _, host := range []string{"acme..example.com", ".example.com", "acme.example.com.", "..", ""} {
			req := httptest.NewRequest("GET", "http://example.com/", nil)
			req.Host = host

			key, err := resolve(req)
			require.NoError(t, err, "host %q", host)
			assert.Empty(t, key, "host %q must not resolve", host)
		}
	})

	t.Run("rejects invalid label format", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "http://example.com/", nil)
		req.Host = "-acme.example.com"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Empty(t, key)
	})

	t.Run("custom exclusion list replaces default", func(t *testing.T) {
		t.Parallel()

		resolve := tenant.NewSubdomainResolver("internal")

		req := httptest.NewRequest("GET", "https://internal.example.com/", nil)
		req.Host = "internal.example.com"
		key, err := resolve(req)
		require.NoError(t, err)
		assert.Empty(t, key)

		req = httptest.NewRequest("GET", "https://www.example.com/", nil)
		req.Host = "www.example.com"
		key, err = resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "www", key)
	})
}

func TestHeaderResolver(t *testing.T) {
	t.Parallel()

	t.Run("extracts key from header", func(t *testing.T) {
		t.Parallel()

		resolve := tenant.NewHeaderResolver("")
		req := httptest.NewRequest("GET", "http://example.com/", nil)
		req.Header.Set("X-Tenant-Slug", "acme")

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		t.Parallel()

		resolve := tenant.NewHeaderResolver("")
		req := httptest.NewRequest("GET", "http://example.com/", nil)
		req.Header.Set("X-Tenant-Slug", "не-slug")

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Empty(t, key)
	})
}

func TestCompositeResolver(t *testing.T) {
	t.Parallel()

	resolve := tenant.NewCompositeResolver(
		tenant.NewHeaderResolver(""),
		tenant.NewSubdomainResolver(),
	)

	t.Run("first non-empty result wins", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "https://acme.example.com/", nil)
		req.Host = "acme.example.com"
		req.Header.Set("X-Tenant-Slug", "beta")

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "beta", key)
	})

	t.Run("falls through to later resolvers", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "https://acme.example.com/", nil)
		req.Host = "acme.example.com"

		key, err := resolve(req)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	})
}

func TestValidSlug(t *testing.T) {
	t.Parallel()

	assert.True(t, tenant.ValidSlug("acme"))
	assert.True(t, tenant.ValidSlug("gracie-barra"))
	assert.True(t, tenant.ValidSlug("a1"))
	assert.False(t, tenant.ValidSlug(""))
	assert.False(t, tenant.ValidSlug("-acme"))
	assert.False(t, tenant.ValidSlug("Acme"))
	assert.False(t, tenant.ValidSlug("acme.beta"))
}
