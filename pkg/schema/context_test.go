package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/schema"
)

func TestConnContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		c := &schema.Conn{}
		ctx := schema.WithConn(context.Background(), c)

		got, ok := schema.ConnFromContext(ctx)
		require.True(t, ok)
		assert.Same(t, c, got)
	})

	t.Run("empty context has no conn", func(t *testing.T) {
		t.Parallel()

		_, ok := schema.ConnFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("must accessor panics without conn", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			schema.MustConnFromContext(context.Background())
		})
	})

	t.Run("release on nil conn is a no-op", func(t *testing.T) {
		t.Parallel()

		var c *schema.Conn
		assert.NotPanics(t, func() { c.Release() })
	})
}
