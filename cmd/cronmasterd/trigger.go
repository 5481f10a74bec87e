package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cronmasterd/core/internal/config"
	"github.com/cronmasterd/core/internal/control"
	"github.com/cronmasterd/core/internal/dispatcher"
	"github.com/cronmasterd/core/internal/invoker"
	"github.com/cronmasterd/core/internal/store"
)

func newTriggerCmd(cfg *config.Config) *cobra.Command {
	var userID, jobID int64

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Fire one job immediately, bypassing its cron schedule, and wait for the outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolved, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runTrigger(cmd, resolved, userID, jobID)
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Owning tenant's user id")
	cmd.Flags().Int64Var(&jobID, "job-id", 0, "Job id to fire")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("job-id")
	return cmd
}

// runTrigger wires a bare repository + invoker + unarmed dispatcher — no
// reconciler, since this is a one-shot CLI invocation, not a running
// scheduler — just enough for control.Surface.Trigger to fire the job and
// record its outcome.
func runTrigger(cmd *cobra.Command, cfg config.Config, userID, jobID int64) error {
	ctx := cmd.Context()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("cronmasterd: connect to postgres: %w", err)
	}
	defer pool.Close()

	repo := store.NewPgxRepository(pool)
	inv := invoker.New(invoker.Config{
		Timeout:           cfg.Invoker.RequestTimeout(),
		ResponseBodyLimit: cfg.Invoker.ResponseBodyLimitBytes,
		UserAgent:         cfg.Invoker.UserAgent,
	}, nil)
	disp := dispatcher.New(repo, inv, logger, dispatcher.Config{})
	surface := control.New(repo, disp, nil) // no reconciler in a one-shot CLI invocation

	if err := surface.Trigger(ctx, userID, jobID); err != nil {
		return fmt.Errorf("cronmasterd: trigger: %w", err)
	}

	job, err := surface.GetJob(ctx, userID, jobID)
	if err != nil {
		return fmt.Errorf("cronmasterd: fetch job after trigger: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "triggered job %d: successes=%d failures=%d last_status=%s\n",
		job.ID, job.SuccessCount, job.FailureCount, job.Status)
	return nil
}
