package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// startHTTPServer serves router until ctx is cancelled, then shuts down
// gracefully within the configured timeout and releases the application.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(app.config.Server.Port)))
	if err != nil {
		app.cleanup()
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.serve(ctx, listener, router)
}

func (app *application) serve(ctx context.Context, listener net.Listener, router http.Handler) error {
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "addr", listener.Addr().String())
		serveErr <- server.Serve(listener)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("Server failed", "error", err)
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("Server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	app.cleanup()
	app.logger.Info("Server shutdown completed")
	return runErr
}
