// Package server runs the sous HTTP server and applies configuration reloads.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/teilomillet/sous/config"
	"github.com/teilomillet/sous/logging"
	"github.com/teilomillet/sous/server/middleware"
	"go.uber.org/zap"
)

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	cfg        config.ServerConfig
	logger     *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address and blocks until ctx is done or
// the server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down server", zap.Duration("timeout", s.cfg.ShutdownTimeout))
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Reloadable holds the runtime components a configuration reload may touch.
// Nil fields are skipped.
type Reloadable struct {
	Level *zap.AtomicLevel
	Queue *middleware.QueueMiddleware
}

// WatchConfig applies log level and queue size changes from w until ctx is
// done or the watcher closes its channel. Settings that need a restart are
// only reported.
func WatchConfig(ctx context.Context, w config.Watcher, targets Reloadable, logger *zap.Logger) {
	updates := w.Subscribe()
	prev := w.GetCurrentConfig()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			applyConfig(prev, cfg, targets, logger)
			prev = cfg
		}
	}
}

func applyConfig(prev, next *config.Config, targets Reloadable, logger *zap.Logger) {
	if targets.Level != nil && next.Logging.Level != prev.Logging.Level {
		lvl, err := logging.ParseLevel(next.Logging.Level)
		if err != nil {
			logger.Warn("ignoring invalid log level", zap.String("level", next.Logging.Level), zap.Error(err))
		} else {
			targets.Level.SetLevel(lvl)
			logger.Info("log level changed", zap.String("level", next.Logging.Level))
		}
	}

	if targets.Queue != nil && next.Queue.MaxSize != prev.Queue.MaxSize && next.Queue.MaxSize > 0 {
		targets.Queue.SetMaxSize(next.Queue.MaxSize)
		logger.Info("queue size changed", zap.Int64("max_size", next.Queue.MaxSize))
	}

	if next.Server.Port != prev.Server.Port ||
		next.LLM.Provider != prev.LLM.Provider ||
		next.LLM.Model != prev.LLM.Model ||
		next.LLM.APIKey != prev.LLM.APIKey {
		logger.Warn("server and provider settings changed, restart to apply")
	}
}
