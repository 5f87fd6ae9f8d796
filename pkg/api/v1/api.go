// Package v1 provides version 1 of the local tenantgate API. It is the
// message-passing boundary the desktop UI talks to: bearer tokens cross it,
// client secrets and refresh tokens never do.
package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
)

// errorResponse is the JSON body for failed API calls.
type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response body: %v", err)
	}
}

// writeError maps a taxonomy error onto an HTTP status and a JSON body.
// Credential problems that need a fresh login are 401s so the UI can route
// straight to the login screen.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := tgerrors.ErrInternal

	var typed *tgerrors.Error
	if errors.As(err, &typed) {
		errType = typed.Type
		switch {
		case tgerrors.IsMissingCredentials(err), tgerrors.IsRevokedGrant(err):
			status = http.StatusUnauthorized
		case tgerrors.IsInvalidArgument(err):
			status = http.StatusBadRequest
		case tgerrors.IsTransient(err), tgerrors.IsIdentityUnavailable(err):
			status = http.StatusBadGateway
		case tgerrors.IsLoginCancelled(err):
			status = http.StatusConflict
		}
	}

	writeJSON(w, status, errorResponse{Error: errType, Reason: tgerrors.Reason(err)})
}
