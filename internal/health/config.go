// Package health exposes the two read-only HTTP endpoints an external API
// collaborator polls: a liveness probe and a keep-alive probe returning
// scheduler statistics. One process, one liveness signal, one stats
// snapshot — no readiness/startup probes or pluggable registrar beyond
// that.
package health

import "github.com/spf13/pflag"

// DefaultPort is the default port for the management server.
const DefaultPort = 9090

// Config holds configuration for the management server.
type Config struct {
	Port         int    `mapstructure:"port"`
	LivenessPath string `mapstructure:"liveness_path"`
	StatsPath    string `mapstructure:"stats_path"`
}

// DefaultConfig returns a Config with the default port and paths.
func DefaultConfig() Config {
	return Config{
		Port:         DefaultPort,
		LivenessPath: "/live",
		StatsPath:    "/stats",
	}
}

// Flags registers CLI overrides for cfg onto fs.
func Flags(fs *pflag.FlagSet, cfg *Config) {
	fs.IntVar(&cfg.Port, "health-port", cfg.Port, "management server port")
	fs.StringVar(&cfg.LivenessPath, "health-liveness-path", cfg.LivenessPath, "liveness probe path")
	fs.StringVar(&cfg.StatsPath, "health-stats-path", cfg.StatsPath, "keep-alive stats path")
}
