// Package server owns the v1 API's http.Server lifecycle: listen and
// graceful shutdown. Grounded on the teacher's internal/server/server.go
// (listen-then-Shutdown-on-context-cancel shape), with a header-read
// timeout added since this server, unlike the teacher's, sits behind no
// reverse proxy in the demo/offline deployment newLLMClient falls back
// to.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cassidy/journal-core/internal/config"
)

const readHeaderTimeout = 10 * time.Second

type Server struct {
	cfg     config.Config
	handler http.Handler
	logger  *slog.Logger
}

func New(cfg config.Config, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then drains in-flight requests for
// up to cfg.ShutdownTimeout before returning.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", s.cfg.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("graceful shutdown failed", slog.Any("error", err))
		}
	}()

	s.logger.Info("server listening", slog.String("port", s.cfg.HTTPPort), slog.Bool("debug", s.cfg.Debug))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-shutdownDone
	return nil
}
