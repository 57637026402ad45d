package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"encounter-assistant/internal/config"
	"encounter-assistant/internal/platform/kv"
)

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL is required for migrations")
	}
	return cfg.DatabaseURL, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres session store schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := kv.Migrate(url); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied successfully.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			if err := kv.MigrateDown(url); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := databaseURL()
			if err != nil {
				return err
			}
			version, dirty, err := kv.MigrationVersion(url)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Version", "State"},
				[][]string{{fmt.Sprint(version), state}},
				[]columnAlignment{alignRight, alignLeft},
			))
			return nil
		},
	})

	return cmd
}
