package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantkit/pkg/migrator"
)

var (
	migrateDryRun         bool
	migrateForce          bool
	migrateSkipValidation bool
	migrateTenantSlug     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create and migrate tenant schemas",
	Long: `Creates missing tenant schemas and applies the full migration history
inside each one. Existing schemas are skipped unless --force is given,
which drops and recreates them (destructive).

The batch continues past individual tenant failures; the exit code is
zero whenever the batch itself ran, and the report lists per-tenant
failures for follow-up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, closeFn, err := setup(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		runner := migrator.NewRunner(app.store, app.schemas, app.log)
		report, err := runner.Run(ctx, migrator.Options{
			DryRun:         migrateDryRun,
			Force:          migrateForce,
			SkipValidation: migrateSkipValidation,
			TenantSlug:     migrateTenantSlug,
		})
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "report intended actions without touching storage")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "drop and recreate schemas that already exist (destructive)")
	migrateCmd.Flags().BoolVar(&migrateSkipValidation, "skip-validation", false, "skip the post-migration isolation check")
	migrateCmd.Flags().StringVar(&migrateTenantSlug, "tenant-slug", "", "restrict the run to one tenant")
	rootCmd.AddCommand(migrateCmd)
}
