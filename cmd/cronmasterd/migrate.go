package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cronmasterd/core/internal/config"
	"github.com/cronmasterd/core/internal/store"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the configured Postgres database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := store.Migrate(resolved.Postgres.DSN); err != nil {
				return fmt.Errorf("cronmasterd: migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
