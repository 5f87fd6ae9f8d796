package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tenantgate/tenantgate/pkg/config"
	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/loginflow"
	"github.com/tenantgate/tenantgate/pkg/session"
)

// loginTimeout bounds how long a detached interactive login may sit waiting
// for the user to finish in the browser.
const loginTimeout = 5 * time.Minute

// LoginStarter runs an interactive login end to end.
type LoginStarter interface {
	Login(ctx context.Context, config *loginflow.Config) (*session.APIConfig, error)
}

// SessionsRoutes defines the routes for the sessions API.
type SessionsRoutes struct {
	sessions *session.Manager
	logins   LoginStarter
	registry config.Store
}

// SessionsRouter creates a new router for the sessions API.
func SessionsRouter(sessions *session.Manager, logins LoginStarter, registry config.Store) http.Handler {
	routes := SessionsRoutes{
		sessions: sessions,
		logins:   logins,
		registry: registry,
	}

	r := chi.NewRouter()
	r.Post("/login", routes.startLogin)
	r.Route("/{tenant}", func(r chi.Router) {
		r.Get("/config", routes.getConfig)
		r.Post("/logout", routes.logout)
	})

	return r
}

// startLoginRequest is the body for POST /login. The client secret is passed
// through to the authorization server and never persisted outside the vault.
type startLoginRequest struct {
	TenantName   string   `json:"tenant_name"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes,omitempty"`
}

// startLoginResponse acknowledges that a login flow has been started. The
// outcome arrives later as a TokenReceived event on /events.
type startLoginResponse struct {
	Status     string `json:"status"`
	TenantName string `json:"tenant_name"`
}

// startLogin kicks off a browser login for a registered tenant. The call
// returns as soon as the flow is launched; it does not wait for the user.
func (s *SessionsRoutes) startLogin(w http.ResponseWriter, r *http.Request) {
	var req startLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, tgerrors.NewInvalidArgumentError("invalid request body", err))
		return
	}
	if req.TenantName == "" {
		writeError(w, tgerrors.NewInvalidArgumentError("tenant_name is required", nil))
		return
	}

	cfg, err := s.registry.Load(r.Context())
	if err != nil {
		writeError(w, tgerrors.NewInternalError("failed to load tenant registry", err))
		return
	}
	tenant := cfg.FindTenant(req.TenantName)
	if tenant == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:  tgerrors.ErrInvalidArgument,
			Reason: "tenant is not registered",
		})
		return
	}

	flowConfig := &loginflow.Config{
		TenantName:   tenant.Name,
		AuthEndpoint: tenant.AuthEndpoint,
		ClientID:     tenant.ClientID,
		ClientSecret: req.ClientSecret,
		Scopes:       req.Scopes,
	}

	// The flow outlives the HTTP request; its outcome is delivered on the
	// event stream.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		if _, err := s.logins.Login(ctx, flowConfig); err != nil {
			logger.Warnf("Login for tenant %s failed: %v", tenant.Name, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, startLoginResponse{
		Status:     "login_started",
		TenantName: tenant.Name,
	})
}

// getConfig returns a ready-to-use API configuration for the tenant,
// refreshing the access token if needed. A 401 means the UI must start an
// interactive login.
func (s *SessionsRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	tenantName := chi.URLParam(r, "tenant")

	apiConfig, err := s.sessions.GetConfig(r.Context(), tenantName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apiConfig)
}

// logoutResponse acknowledges a logout.
type logoutResponse struct {
	Status     string `json:"status"`
	TenantName string `json:"tenant_name"`
}

// logout removes the tenant's stored credentials and clears its session.
func (s *SessionsRoutes) logout(w http.ResponseWriter, r *http.Request) {
	tenantName := chi.URLParam(r, "tenant")

	if err := s.sessions.Logout(r.Context(), tenantName); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, logoutResponse{
		Status:     "logged_out",
		TenantName: tenantName,
	})
}
