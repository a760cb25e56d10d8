package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the catalog database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply migrations up to DB_MIGRATION_VERSION, or the latest",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			a.logger.WithContext(ctx).Info("Migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			return a.migrations().Down(a.db.SqlDB(), a.cfg.DatabaseName, migrateSteps)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current and latest schema versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			status, err := a.migrations().Status(a.db.SqlDB(), a.cfg.DatabaseName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d latest=%d dirty=%t\n", status.Version, status.Latest, status.Dirty)
			return nil
		})
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "Number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}
