package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deactivateSlug string

var deactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Soft-deactivate a tenant",
	Long: `Marks a tenant inactive. The resolution path immediately treats it as
not found (the cache entry is invalidated as part of the same operation),
but its schema and data are kept; use "tenantctl activate" to bring it
back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if deactivateSlug == "" {
			return fmt.Errorf("--slug is required")
		}

		app, closeFn, err := setup(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := app.store.Deactivate(ctx, deactivateSlug); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "deactivated tenant %s\n", deactivateSlug)
		return nil
	},
}

var activateSlug string

var activateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Re-activate a deactivated tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if activateSlug == "" {
			return fmt.Errorf("--slug is required")
		}

		app, closeFn, err := setup(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := app.store.Activate(ctx, activateSlug); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "activated tenant %s\n", activateSlug)
		return nil
	},
}

func init() {
	deactivateCmd.Flags().StringVar(&deactivateSlug, "slug", "", "routing key of the tenant")
	activateCmd.Flags().StringVar(&activateSlug, "slug", "", "routing key of the tenant")
	rootCmd.AddCommand(deactivateCmd, activateCmd)
}
