package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/cronmasterd/core/internal/logging"
)

const readHeaderTimeout = 5 * time.Second

// Server serves the liveness and stats endpoints on their own port, CORS
// enabled so a browser-based operational dashboard can poll it directly.
type Server struct {
	cfg           Config
	server        *http.Server
	shutdownCheck *ShutdownCheck
	logger        *slog.Logger
}

// NewServer builds a Server. manager supplies the liveness checks, snap
// the stats endpoint's data source.
func NewServer(cfg Config, manager *Manager, snap SnapshotSource, shutdownCheck *ShutdownCheck, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.LivenessPath, manager.NewLivenessHandler())
	mux.Handle(cfg.StatsPath, NewStatsHandler(snap))

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	}).Handler(logging.RequestIDMiddleware(mux))

	return &Server{
		cfg: cfg,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		shutdownCheck: shutdownCheck,
		logger:        logger.With(slog.String("component", "health_server")),
	}
}

// OnStart launches the server in the background and returns immediately.
func (s *Server) OnStart(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.ErrorContext(ctx, "health server error", slog.Any("error", err))
		}
	}()
	s.logger.Info("health server started", slog.Int("port", s.cfg.Port))
	return nil
}

// OnStop marks the shutdown check unhealthy, then shuts the server down.
func (s *Server) OnStop(ctx context.Context) error {
	if s.shutdownCheck != nil {
		s.shutdownCheck.MarkShuttingDown()
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("health: shutdown server: %w", err)
	}
	return nil
}
