package main

import (
	"fmt"

	"compras/db/migrations"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := migrations.Run(conn.DB, cfg.DB.Driver); err != nil {
				return err
			}
			version, err := migrations.Version(conn.DB, cfg.DB.Driver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()
			return migrations.Status(conn.DB, cfg.DB.Driver)
		},
	})
	return cmd
}
