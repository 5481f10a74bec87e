package main

import (
	"github.com/spf13/cobra"

	"github.com/cronmasterd/core/internal/config"
)

var configPath string

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "cronmasterd",
		Short: "CronMaster: multi-tenant cron/webhook scheduler",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	config.Flags(root.PersistentFlags(), &cfg)

	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newMigrateCmd(&cfg))
	root.AddCommand(newTriggerCmd(&cfg))
	root.AddCommand(newStatsCmd(&cfg))
	return root
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configPath, cmd.Flags())
}
