package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tenants and their schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, closeFn, err := setup(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		tenants, err := app.store.ListActive(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tSCHEMA\tNAME\tCREATED")
		for _, t := range tenants {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				t.Slug, t.SchemaName, t.Name, t.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
