// Package api contains the local REST API for tenantgate. The desktop UI is
// its only intended client; the server binds to loopback.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/tenantgate/tenantgate/pkg/api/v1"
	"github.com/tenantgate/tenantgate/pkg/config"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/vault"
	"github.com/tenantgate/tenantgate/pkg/vault/keyring"
)

const (
	// DefaultAddress is where the local API listens when the config does
	// not say otherwise.
	DefaultAddress = "127.0.0.1:9080"

	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Deps carries the collaborators the API routes need.
type Deps struct {
	Sessions *session.Manager
	Logins   v1.LoginStarter
	Registry config.Store
	Vault    *vault.Vault
	Keyring  keyring.Provider
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Router assembles the full API router.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	routers := map[string]http.Handler{
		"/health":          v1.HealthcheckRouter(deps.Keyring),
		"/api/v1/sessions": v1.SessionsRouter(deps.Sessions, deps.Logins, deps.Registry),
		"/api/v1/tenants":  v1.TenantsRouter(deps.Registry, deps.Vault),
		"/api/v1/events":   v1.EventsRouter(deps.Sessions.Events()),
	}
	for prefix, router := range routers {
		r.Mount(prefix, router)
	}

	return r
}

// Serve starts the server on the given address and serves the API until ctx
// is cancelled. It is assumed that the caller sets up appropriate signal
// handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	if address == "" {
		address = DefaultAddress
	}

	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           Router(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	logger.Infof("starting API server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("API server stopped")
	return nil
}
