package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tenantgate/tenantgate/pkg/config"
	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/vault"
)

// TenantsRoutes defines the routes for the tenant registry API.
type TenantsRoutes struct {
	registry config.Store
	vault    *vault.Vault
}

// TenantsRouter creates a new router for the tenant registry API.
func TenantsRouter(registry config.Store, v *vault.Vault) http.Handler {
	routes := TenantsRoutes{
		registry: registry,
		vault:    v,
	}

	r := chi.NewRouter()
	r.Get("/", routes.listTenants)
	r.Post("/", routes.registerTenant)
	r.Delete("/{name}", routes.removeTenant)

	return r
}

// tenantListResponse is the body for GET /tenants.
type tenantListResponse struct {
	Tenants []config.Tenant `json:"tenants"`
}

// listTenants returns all registered tenants.
func (t *TenantsRoutes) listTenants(w http.ResponseWriter, r *http.Request) {
	cfg, err := t.registry.Load(r.Context())
	if err != nil {
		writeError(w, tgerrors.NewInternalError("failed to load tenant registry", err))
		return
	}

	tenants := cfg.Tenants
	if tenants == nil {
		tenants = []config.Tenant{}
	}
	writeJSON(w, http.StatusOK, tenantListResponse{Tenants: tenants})
}

// registerTenant adds or replaces a tenant registry entry.
func (t *TenantsRoutes) registerTenant(w http.ResponseWriter, r *http.Request) {
	var tenant config.Tenant
	if err := json.NewDecoder(r.Body).Decode(&tenant); err != nil {
		writeError(w, tgerrors.NewInvalidArgumentError("invalid request body", err))
		return
	}
	if err := tenant.Validate(); err != nil {
		writeError(w, err)
		return
	}

	err := t.registry.Update(r.Context(), func(c *config.Config) {
		c.UpsertTenant(tenant)
	})
	if err != nil {
		writeError(w, tgerrors.NewInternalError("failed to update tenant registry", err))
		return
	}

	writeJSON(w, http.StatusCreated, tenant)
}

// removeTenant deletes a tenant from the registry and best-effort removes
// its stored credentials.
func (t *TenantsRoutes) removeTenant(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	removed := false
	err := t.registry.Update(r.Context(), func(c *config.Config) {
		removed = c.RemoveTenant(name)
	})
	if err != nil {
		writeError(w, tgerrors.NewInternalError("failed to update tenant registry", err))
		return
	}
	if !removed {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error:  tgerrors.ErrInvalidArgument,
			Reason: "tenant is not registered",
		})
		return
	}

	// Orphaned credentials are only a hygiene problem, not a correctness one.
	if err := t.vault.DeleteCredentials(name); err != nil {
		logger.Warnf("Failed to delete credentials for removed tenant %s: %v", name, err)
	}

	w.WriteHeader(http.StatusNoContent)
}
