// Package vault contains durable credential storage for tenantgate.
//
// Exactly four secrets are stored per tenant: the refresh token, the client
// id, the client secret, and the authorization endpoint. Nothing else is ever
// persisted in plaintext; everything lives in the OS credential store.
package vault

import (
	"errors"
	"fmt"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/vault/keyring"
)

// keyringService is the service name under which all tenantgate secrets are
// stored in the OS credential store.
const keyringService = "tenantgate"

// Per-tenant secret keys. The four form a unit: a tenant either has all of
// them or is treated as having none.
const (
	KeyRefreshToken = "refresh_token"
	KeyClientID     = "client_id"
	KeyClientSecret = "client_secret"
	KeyAuthEndpoint = "auth_endpoint"
)

// credentialKeys lists every key belonging to a tenant's credential set.
var credentialKeys = []string{KeyRefreshToken, KeyClientID, KeyClientSecret, KeyAuthEndpoint}

// TenantCredentials is the durable credential quadruple for one tenant.
type TenantCredentials struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
	AuthEndpoint string
}

// Complete reports whether all four fields are present.
func (c *TenantCredentials) Complete() bool {
	return c.RefreshToken != "" && c.ClientID != "" && c.ClientSecret != "" && c.AuthEndpoint != ""
}

// Vault stores tenant credentials in an OS credential store. Individual key
// writes are atomic; the vault offers no multi-key transaction, so readers
// must treat a partial credential set as absent (LoadCredentials does).
type Vault struct {
	provider keyring.Provider
}

// New creates a Vault backed by the given keyring provider.
func New(provider keyring.Provider) *Vault {
	return &Vault{provider: provider}
}

// NewSystem creates a Vault backed by the OS keyring, verifying that the
// keyring is usable first.
func NewSystem() (*Vault, error) {
	provider := keyring.NewSystemProvider()
	if !provider.IsAvailable() {
		return nil, tgerrors.NewInternalError(
			"OS keyring is not available; tenantgate requires a credential store to hold tenant secrets", nil)
	}
	return New(provider), nil
}

func tenantKey(tenant, key string) string {
	return fmt.Sprintf("%s/%s", tenant, key)
}

// Get retrieves a single secret for a tenant.
func (v *Vault) Get(tenant, key string) (string, error) {
	return v.provider.Get(keyringService, tenantKey(tenant, key))
}

// Set stores a single secret for a tenant.
func (v *Vault) Set(tenant, key, value string) error {
	return v.provider.Set(keyringService, tenantKey(tenant, key), value)
}

// Delete removes a single secret for a tenant.
func (v *Vault) Delete(tenant, key string) error {
	return v.provider.Delete(keyringService, tenantKey(tenant, key))
}

// StoreCredentials writes the full credential quadruple for a tenant.
func (v *Vault) StoreCredentials(tenant string, creds TenantCredentials) error {
	if tenant == "" {
		return tgerrors.NewInvalidArgumentError("tenant name cannot be empty", nil)
	}
	if !creds.Complete() {
		return tgerrors.NewInvalidArgumentError("refusing to store a partial credential set", nil)
	}

	values := map[string]string{
		KeyRefreshToken: creds.RefreshToken,
		KeyClientID:     creds.ClientID,
		KeyClientSecret: creds.ClientSecret,
		KeyAuthEndpoint: creds.AuthEndpoint,
	}
	for _, key := range credentialKeys {
		if err := v.Set(tenant, key, values[key]); err != nil {
			return fmt.Errorf("failed to store %s for tenant %s: %w", key, tenant, err)
		}
	}
	return nil
}

// LoadCredentials reads the credential quadruple for a tenant. A missing or
// partial set yields a missing_credentials error; the vault has no multi-key
// transaction guarantee, so partial means absent.
func (v *Vault) LoadCredentials(tenant string) (*TenantCredentials, error) {
	if tenant == "" {
		return nil, tgerrors.NewInvalidArgumentError("tenant name cannot be empty", nil)
	}

	values := make(map[string]string, len(credentialKeys))
	for _, key := range credentialKeys {
		value, err := v.Get(tenant, key)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, tgerrors.NewMissingCredentialsError(
					fmt.Sprintf("no stored credentials for tenant %s", tenant), err)
			}
			return nil, tgerrors.NewInternalError(
				fmt.Sprintf("failed to read credentials for tenant %s", tenant), err)
		}
		values[key] = value
	}

	creds := &TenantCredentials{
		RefreshToken: values[KeyRefreshToken],
		ClientID:     values[KeyClientID],
		ClientSecret: values[KeyClientSecret],
		AuthEndpoint: values[KeyAuthEndpoint],
	}
	if !creds.Complete() {
		return nil, tgerrors.NewMissingCredentialsError(
			fmt.Sprintf("stored credentials for tenant %s are incomplete", tenant), nil)
	}
	return creds, nil
}

// RotateRefreshToken overwrites the stored refresh token for a tenant.
// The previous value is not retained anywhere.
func (v *Vault) RotateRefreshToken(tenant, refreshToken string) error {
	if refreshToken == "" {
		return tgerrors.NewInvalidArgumentError("refresh token cannot be empty", nil)
	}
	if err := v.Set(tenant, KeyRefreshToken, refreshToken); err != nil {
		return fmt.Errorf("failed to rotate refresh token for tenant %s: %w", tenant, err)
	}
	return nil
}

// DeleteCredentials removes all four secrets for a tenant. Keys that are
// already absent are skipped rather than aborting the purge.
func (v *Vault) DeleteCredentials(tenant string) error {
	if tenant == "" {
		return tgerrors.NewInvalidArgumentError("tenant name cannot be empty", nil)
	}

	var firstErr error
	for _, key := range credentialKeys {
		if err := v.Delete(tenant, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			logger.Warnf("failed to delete %s for tenant %s: %v", key, tenant, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("failed to delete credentials for tenant %s: %w", tenant, firstErr)
	}
	return nil
}
