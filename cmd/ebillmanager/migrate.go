package main

import (
	"fmt"

	"github.com/bher20/ebillmanager/internal/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.Up(cmd.Context(), g.cfg.DB.Driver, g.cfg.DB.DSN); err != nil {
					return err
				}
				g.log.Info(cmd.Context(), "migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrate.Down(cmd.Context(), g.cfg.DB.Driver, g.cfg.DB.DSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.Status(cmd.Context(), g.cfg.DB.Driver, g.cfg.DB.DSN); err != nil {
					return err
				}
				v, err := migrate.Version(cmd.Context(), g.cfg.DB.Driver, g.cfg.DB.DSN)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
				return nil
			},
		},
	)
	return cmd
}
