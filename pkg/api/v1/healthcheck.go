package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tenantgate/tenantgate/pkg/vault/keyring"
)

// HealthcheckRouter sets up the healthcheck route.
func HealthcheckRouter(provider keyring.Provider) http.Handler {
	routes := &healthcheckRoutes{provider: provider}
	r := chi.NewRouter()
	r.Get("/", routes.getHealthcheck)
	return r
}

type healthcheckRoutes struct {
	provider keyring.Provider
}

// getHealthcheck reports whether the credential store backing the vault is
// usable. Without it every session operation is dead on arrival.
func (h *healthcheckRoutes) getHealthcheck(w http.ResponseWriter, _ *http.Request) {
	if !h.provider.IsAvailable() {
		http.Error(w, "credential store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
