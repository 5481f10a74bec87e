package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/cronmasterd/core/internal/config"
)

func TestDefault_MatchesSpecDefaults(t *testing.T) {
	cfg := config.Default()

	require.EqualValues(t, 30_000, cfg.Invoker.RequestTimeoutMS)
	require.EqualValues(t, 10_240, cfg.Invoker.ResponseBodyLimitBytes)
	require.Equal(t, 30, cfg.Scheduler.ExecutionRetentionDays)
	require.EqualValues(t, 300_000, cfg.Scheduler.ReconcileIntervalMS)
	require.EqualValues(t, 3_600_000, cfg.Scheduler.PruneIntervalMS)
	require.EqualValues(t, 30_000, cfg.Scheduler.ShutdownDrainDeadlineMS)
	require.Equal(t, 0, cfg.Scheduler.MaxConcurrentFirings)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cronmasterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
invoker:
  user_agent: "custom-agent/2.0"
  request_timeout_ms: 5000
scheduler:
  max_concurrent_firings: 10
`), 0o644))

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "custom-agent/2.0", cfg.Invoker.UserAgent)
	require.EqualValues(t, 5000, cfg.Invoker.RequestTimeoutMS)
	require.Equal(t, 10, cfg.Scheduler.MaxConcurrentFirings)
	// Unset fields keep their default values.
	require.EqualValues(t, 10_240, cfg.Invoker.ResponseBodyLimitBytes)
}

func TestLoad_EnvVarOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cronmasterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
invoker:
  user_agent: "from-file"
`), 0o644))

	t.Setenv("CRONMASTER_INVOKER_USER_AGENT", "from-env")

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Invoker.UserAgent)
}

func TestLoad_FlagOverridesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cronmasterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
invoker:
  user_agent: "from-file"
`), 0o644))
	t.Setenv("CRONMASTER_INVOKER_USER_AGENT", "from-env")

	defaults := config.Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.Flags(fs, &defaults)
	require.NoError(t, fs.Set("user-agent", "from-flag"))

	cfg, err := config.Load(path, fs)
	require.NoError(t, err)
	require.Equal(t, "from-flag", cfg.Invoker.UserAgent)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	require.Equal(t, config.Default().Invoker.UserAgent, cfg.Invoker.UserAgent)
}

func TestValidate_RejectsOutOfRangeShutdownDeadline(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler.ShutdownDrainDeadlineMS = 60_000
	require.Error(t, cfg.Validate())
}

func TestValidate_RequiresPostgresDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Postgres.DSN = ""
	require.Error(t, cfg.Validate())
}

func TestWatch_InvokesCallbackOnFileRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cronmasterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  dsn: "postgres://x"
invoker:
  user_agent: "before-reload"
`), 0o644))

	reloaded := make(chan config.Config, 1)
	require.NoError(t, config.Watch(path, func(cfg config.Config) {
		reloaded <- cfg
	}))

	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  dsn: "postgres://x"
invoker:
  user_agent: "after-reload"
`), 0o644))

	select {
	case cfg := <-reloaded:
		require.Equal(t, "after-reload", cfg.Invoker.UserAgent)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch never invoked onChange after the file was rewritten")
	}
}

func TestWatch_MissingFileReturnsError(t *testing.T) {
	err := config.Watch(filepath.Join(t.TempDir(), "does-not-exist.yaml"), func(config.Config) {})
	require.Error(t, err)
}

func TestDurationHelpers_ConvertMillisecondFields(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "30s", cfg.Invoker.RequestTimeout().String())
	require.Equal(t, "720h0m0s", cfg.Scheduler.ExecutionRetention().String())
}
