// Package server constructs, starts, and stops the relay and landing HTTP
// servers with production timeouts.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tyrowin/gorelay/internal/logger"
)

// CreateServer creates an HTTP server for handler on port. WriteTimeout is
// left unset because hijacked WebSocket connections manage their own
// deadlines and the landing server only serves small assets.
func CreateServer(port string, handler http.Handler, log *logger.Logger) *http.Server {
	srv := &http.Server{
		Addr:              port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if log != nil {
		srv.ErrorLog = slog.NewLogLogger(log.Slog().Handler(), slog.LevelWarn)
	}
	return srv
}

// StartServer listens and serves until the server is shut down. A bind or
// accept failure is returned; a normal shutdown returns nil.
func StartServer(server *http.Server, log *logger.Logger) error {
	log.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server, waiting for in-flight
// requests until timeout.
func ShutdownServer(server *http.Server, timeout time.Duration, log *logger.Logger) error {
	log.Info("Shutting down HTTP server...", "addr", server.Addr)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "addr", server.Addr, "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed", "addr", server.Addr)
	return nil
}
