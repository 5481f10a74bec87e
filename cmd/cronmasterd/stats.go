package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cronmasterd/core/internal/config"
)

func newStatsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the running instance's keep-alive stats as reported by its health server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runStats(cmd, resolved)
		},
	}
	return cmd
}

func runStats(cmd *cobra.Command, cfg config.Config) error {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Health.Port, cfg.Health.StatsPath)

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("cronmasterd: build stats request: %w", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cronmasterd: fetch stats from %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cronmasterd: read stats response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cronmasterd: stats endpoint returned %s", resp.Status)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return nil
}
