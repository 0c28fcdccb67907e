// Package api contains the REST API for Guidepost.
package api

// @title           Guidepost API
// @version         1.0
// @description     This is the Guidepost authentication API server.

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	v1 "github.com/guidepost-hq/guidepost/pkg/api/v1"
	authmw "github.com/guidepost-hq/guidepost/pkg/auth/middleware"
	"github.com/guidepost-hq/guidepost/pkg/auth/session"
	"github.com/guidepost-hq/guidepost/pkg/logger"
	"github.com/guidepost-hq/guidepost/pkg/telemetry"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
	socketPermissions = 0660 // Socket file permissions (owner/group read-write)

	// The API only ever carries small JSON payloads.
	maxRequestBodySize = 1 << 20 // 1MB
)

// Config carries everything Serve needs to assemble the HTTP surface.
type Config struct {
	// Address is the host:port to listen on, or a filesystem path when
	// UnixSocket is set.
	Address string

	// UnixSocket serves the API on a UNIX socket at Address instead of TCP.
	UnixSocket bool

	// Authenticator guards every route under /api/v1 except version.
	Authenticator *authmw.Authenticator

	// Freshness backs the explicit session freshness endpoint.
	Freshness *session.Validator

	// Metrics instruments every request when set.
	Metrics *telemetry.Metrics

	// Registry is served on /metrics when set.
	Registry *prometheus.Registry
}

// listen opens the listener described by cfg. For UNIX sockets the parent
// directory is created and a stale socket from a previous run is removed,
// since binding an existing path fails with "address already in use".
func listen(cfg Config) (net.Listener, error) {
	if !cfg.UnixSocket {
		return net.Listen("tcp", cfg.Address)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Address), 0750); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(cfg.Address); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UNIX socket: %w", err)
	}

	// Other local processes in the same group need to connect.
	if err := os.Chmod(cfg.Address, socketPermissions); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

func removeSocket(address string) {
	if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
		logger.Warnf("failed to remove socket file %s: %v", address, err)
	}
}

// jsonAPIHeaders declares the response content type for API routes up front.
// Handlers that encode something else overwrite it.
func jsonAPIHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Router assembles the HTTP routing tree: health, version and metrics are
// reachable without credentials, everything else sits behind the bearer
// token middleware.
func Router(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(middlewareTimeout),
		requestBodySizeLimitMiddleware(maxRequestBodySize),
		loggingMiddleware,
		jsonAPIHeaders,
	)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.InstrumentHandler)
	}

	r.Mount("/health", v1.HealthcheckRouter())
	r.Mount("/api/v1/version", v1.VersionRouter())
	if cfg.Registry != nil {
		r.Mount("/metrics", telemetry.Handler(cfg.Registry))
	}

	r.Group(func(r chi.Router) {
		r.Use(cfg.Authenticator.Middleware)
		r.Mount("/api/v1/auth", v1.AuthRouter(cfg.Freshness))
		r.Mount("/api/v1/org", v1.OrgRouter())
	})

	return r
}

// Serve runs the API server until ctx is cancelled, then shuts down
// gracefully. It is assumed that the caller sets up signal handling.
func Serve(ctx context.Context, cfg Config) error {
	listener, err := listen(cfg)
	if err != nil {
		return err
	}
	if cfg.UnixSocket {
		defer removeSocket(cfg.Address)
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Handler:           Router(cfg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.Infof("starting server on %s", listener.Addr())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped unexpectedly: %w", err)
	case <-ctx.Done():
	}

	// The serve context is already done, so shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
