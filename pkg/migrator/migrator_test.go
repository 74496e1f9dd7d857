package migrator_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantkit/pkg/migrator"
	"github.com/dmitrymomot/tenantkit/pkg/tenant"
)

// fakeSource serves a fixed tenant fleet.
type fakeSource struct {
	tenants []tenant.Tenant
	listErr error
}

func (s *fakeSource) ListActive(context.Context) ([]tenant.Tenant, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.tenants, nil
}

func (s *fakeSource) FindActiveBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	for i := range s.tenants {
		if s.tenants[i].Slug == slug {
			return &s.tenants[i], nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

// fakeSchemas is an in-memory schema store with per-schema failure
// injection and a call log for asserting what the runner touched.
type fakeSchemas struct {
	mu         sync.Mutex
	existing   map[string]bool
	applied    map[string]int
	failOn     map[string]error
	validateOn map[string]error
	calls      []string
}

func newFakeSchemas(existing ...string) *fakeSchemas {
	s := &fakeSchemas{
		existing:   make(map[string]bool),
		applied:    make(map[string]int),
		failOn:     make(map[string]error),
		validateOn: make(map[string]error),
	}
	for _, name := range existing {
		s.existing[name] = true
		s.applied[name] = 1
	}
	return s
}

func (s *fakeSchemas) record(op, name string) {
	s.calls = append(s.calls, op+":"+name)
}

func (s *fakeSchemas) Exists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("exists", name)
	return s.existing[name], nil
}

func (s *fakeSchemas) Create(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("create", name)
	if err := s.failOn["create:"+name]; err != nil {
		return err
	}
	s.existing[name] = true
	return nil
}

func (s *fakeSchemas) Drop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("drop", name)
	if err := s.failOn["drop:"+name]; err != nil {
		return err
	}
	delete(s.existing, name)
	delete(s.applied, name)
	return nil
}

func (s *fakeSchemas) Migrate(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("migrate", name)
	if err := s.failOn["migrate:"+name]; err != nil {
		return err
	}
	s.applied[name]++
	return nil
}

func (s *fakeSchemas) AppliedMigrations(_ context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.validateOn[name]; err != nil {
		return 0, err
	}
	return s.applied[name], nil
}

func fleet(slugs ...string) *fakeSource {
	src := &fakeSource{}
	for _, slug := range slugs {
		src.tenants = append(src.tenants, tenant.Tenant{
			ID:         uuid.New(),
			Slug:       slug,
			SchemaName: "tenant_" + slug,
			Active:     true,
		})
	}
	return src
}

func TestRunnerRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("migrates fresh tenants", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		runner := migrator.NewRunner(fleet("acme", "beta"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Count(migrator.OutcomeMigrated))
		assert.True(t, schemas.existing["tenant_acme"])
		assert.True(t, schemas.existing["tenant_beta"])
	})

	t.Run("skips existing schemas without force", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas("tenant_acme")
		runner := migrator.NewRunner(fleet("acme", "beta"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Count(migrator.OutcomeSkipped))
		assert.Equal(t, 1, report.Count(migrator.OutcomeMigrated))
		assert.NotContains(t, schemas.calls, "drop:tenant_acme")
		assert.NotContains(t, schemas.calls, "migrate:tenant_acme")
	})

	t.Run("second run is idempotent", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		runner := migrator.NewRunner(fleet("acme", "beta"), schemas, nil)

		_, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		report, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Count(migrator.OutcomeSkipped))
		assert.Zero(t, report.Count(migrator.OutcomeMigrated))
	})

	t.Run("force drops and recreates", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas("tenant_acme")
		runner := migrator.NewRunner(fleet("acme"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{Force: true})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Count(migrator.OutcomeMigrated))
		assert.Equal(t, []string{
			"exists:tenant_acme",
			"drop:tenant_acme",
			"create:tenant_acme",
			"migrate:tenant_acme",
		}, schemas.calls)
	})

	t.Run("dry run touches nothing", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas("tenant_beta")
		runner := migrator.NewRunner(fleet("acme"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{DryRun: true})
		require.NoError(t, err)

		assert.Equal(t, 1, report.Count(migrator.OutcomeWouldMigrate))
		assert.False(t, schemas.existing["tenant_acme"])
		for _, call := range schemas.calls {
			assert.Contains(t, call, "exists:", "dry run must only probe existence")
		}
	})

	t.Run("dry run with force reports recreate intent", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas("tenant_acme")
		runner := migrator.NewRunner(fleet("acme"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{DryRun: true, Force: true})
		require.NoError(t, err)

		require.Len(t, report.Results, 1)
		assert.Equal(t, migrator.OutcomeWouldMigrate, report.Results[0].Outcome)
		assert.Contains(t, report.Results[0].Reason, "drop and recreate")
		assert.True(t, schemas.existing["tenant_acme"], "dry run must not drop")
	})

	t.Run("single tenant selection", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		runner := migrator.NewRunner(fleet("acme", "beta", "gamma"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{TenantSlug: "beta"})
		require.NoError(t, err)

		require.Len(t, report.Results, 1)
		assert.Equal(t, "beta", report.Results[0].Slug)
		assert.True(t, schemas.existing["tenant_beta"])
		assert.False(t, schemas.existing["tenant_acme"])
	})

	t.Run("unknown slug is a structural failure", func(t *testing.T) {
		t.Parallel()

		runner := migrator.NewRunner(fleet("acme"), newFakeSchemas(), nil)

		_, err := runner.Run(ctx, migrator.Options{TenantSlug: "ghost"})
		require.Error(t, err)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})

	t.Run("listing failure aborts the batch", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{listErr: errors.New("registry down")}
		runner := migrator.NewRunner(src, newFakeSchemas(), nil)

		report, err := runner.Run(ctx, migrator.Options{})
		require.Error(t, err)
		assert.Nil(t, report)
	})

	t.Run("one failure does not abort the batch", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		schemas.failOn["migrate:tenant_beta"] = errors.New("syntax error in migration")
		runner := migrator.NewRunner(fleet("acme", "beta", "gamma"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		assert.Equal(t, 2, report.Count(migrator.OutcomeMigrated))
		assert.Equal(t, 1, report.Count(migrator.OutcomeFailed))
		assert.True(t, schemas.existing["tenant_gamma"], "tenants after the failure still run")

		failures := report.Failures()
		require.Len(t, failures, 1)
		assert.Equal(t, "beta", failures[0].Slug)
		require.Error(t, failures[0].Err)
	})

	t.Run("validation flags empty migration history", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		schemas.validateOn["tenant_acme"] = errors.New("schema unreachable")
		runner := migrator.NewRunner(fleet("acme", "beta"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{})
		require.NoError(t, err)

		require.Len(t, report.Results, 2)
		for _, res := range report.Results {
			assert.Equal(t, migrator.OutcomeMigrated, res.Outcome)
			if res.Slug == "acme" {
				assert.Error(t, res.ValidationErr)
			} else {
				assert.NoError(t, res.ValidationErr)
			}
		}
	})

	t.Run("skip validation omits the check", func(t *testing.T) {
		t.Parallel()

		schemas := newFakeSchemas()
		schemas.validateOn["tenant_acme"] = errors.New("schema unreachable")
		runner := migrator.NewRunner(fleet("acme"), schemas, nil)

		report, err := runner.Run(ctx, migrator.Options{SkipValidation: true})
		require.NoError(t, err)
		assert.NoError(t, report.Results[0].ValidationErr)
	})
}

func TestReportString(t *testing.T) {
	t.Parallel()

	schemas := newFakeSchemas("tenant_old")
	schemas.failOn["migrate:tenant_bad"] = errors.New("boom")
	runner := migrator.NewRunner(fleet("new", "old", "bad"), schemas, nil)

	report, err := runner.Run(context.Background(), migrator.Options{})
	require.NoError(t, err)

	out := report.String()
	for _, want := range []string{"new", "old", "bad", "boom"} {
		assert.Contains(t, out, want, fmt.Sprintf("summary should mention %q", want))
	}
}
