// Package httpserver runs an HTTP server until its context ends.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/customs/internal/logutil"
)

// Config holds server timeouts. Zero values take the defaults.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration // default: 15s
	WriteTimeout    time.Duration // default: 30s
	ShutdownTimeout time.Duration // default: 10s
}

// Serve listens on cfg.Addr and serves handler until ctx is done, then
// shuts down gracefully.
func Serve(ctx context.Context, cfg Config, handler http.Handler) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, cfg, handler)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, cfg Config, handler http.Handler) error {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log := logutil.GetOrDefault(ctx).With().Str("server.addr", ln.Addr().String()).Logger()
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting HTTP server")
		serveErr <- server.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Initiating shutdown process")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("Shutdown completed")
	return nil
}
