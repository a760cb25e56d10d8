package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metadata"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage catalog metadata",
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load <file.yaml>",
	Short: "Load sources, stages, type mappings, tables and columns from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := metadata.ParseFile(args[0])
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			loader := metadata.NewLoader(metadata.NewCatalogStore(a.catalog), a.logger)

			var summary metadata.Summary
			err := database.WithTx(ctx, a.db, func(ctx context.Context) error {
				var err error
				summary, err = loader.Load(ctx, doc)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return nil
		})
	},
}

func init() {
	catalogCmd.AddCommand(catalogLoadCmd)
}
