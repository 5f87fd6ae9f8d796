// Package session holds the hot session state for the active tenant and
// decides when a cached access token is usable, when a transparent refresh is
// possible, and when interactive login is unavoidable.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/tokenex"
	"github.com/tenantgate/tenantgate/pkg/vault"
)

// ExpiryBuffer is subtracted from a token's advertised lifetime at
// acquisition time. A token is never handed to a caller within its last five
// minutes of nominal validity, absorbing clock drift and request latency.
const ExpiryBuffer = 300 * time.Second

// ActiveSession is the volatile record of the currently active tenant.
// TenantName is empty exactly when no session is held; the struct is always
// replaced wholesale, never partially merged across a tenant switch.
type ActiveSession struct {
	TenantName   string
	AccessToken  string
	Expiry       time.Time
	RestEndpoint string
	SoapEndpoint string
	Identity     *tokenex.Identity
}

// APIConfig is what callers receive from GetConfig: everything needed to
// issue authenticated REST/SOAP requests for a tenant.
type APIConfig struct {
	TenantName   string            `json:"tenant_name"`
	AccessToken  string            `json:"access_token"`
	RestEndpoint string            `json:"rest_endpoint"`
	SoapEndpoint string            `json:"soap_endpoint"`
	Identity     *tokenex.Identity `json:"identity,omitempty"`
}

// Exchanger is the subset of the token exchange client the manager needs.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, endpoint, clientID, clientSecret, refreshToken string) (*tokenex.TokenResponse, error)
	FetchIdentity(ctx context.Context, endpointBase, accessToken string) (*tokenex.Identity, error)
}

// Manager owns the single ActiveSession and orchestrates the vault and the
// token exchange client. All mutations of the session go through it.
type Manager struct {
	vault     *vault.Vault
	exchanger Exchanger
	bus       *Bus

	// now is the clock, replaceable in tests.
	now func() time.Time

	// group collapses concurrent refreshes for the same tenant into one
	// network exchange whose result all callers share.
	group singleflight.Group

	mu     sync.Mutex
	active ActiveSession
	// invalidations counts logouts per tenant. A refresh records the count
	// before releasing the lock for the network call and discards its result
	// if the count moved while the exchange was outstanding.
	invalidations map[string]uint64
}

// NewManager creates a session manager over the given vault and exchanger.
func NewManager(v *vault.Vault, exchanger Exchanger) *Manager {
	return &Manager{
		vault:         v,
		exchanger:     exchanger,
		bus:           NewBus(),
		now:           time.Now,
		invalidations: make(map[string]uint64),
	}
}

// Events returns the bus carrying TokenReceived, RequireLogin and
// LogoutSuccess notifications.
func (m *Manager) Events() *Bus {
	return m.bus
}

// Active returns a copy of the current session record.
func (m *Manager) Active() ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// GetConfig returns a usable API configuration for the tenant, transparently
// refreshing the access token when the cached one is absent, stale, or
// belongs to a different tenant. When no token can be produced without user
// interaction it returns a taxonomy error and publishes RequireLogin with a
// human-readable reason.
func (m *Manager) GetConfig(ctx context.Context, tenantName string) (*APIConfig, error) {
	if tenantName == "" {
		return nil, tgerrors.NewInvalidArgumentError("tenant name cannot be empty", nil)
	}

	m.mu.Lock()
	if config := m.usableConfigLocked(tenantName); config != nil {
		m.mu.Unlock()
		return config, nil
	}
	m.mu.Unlock()

	// Refresh needed. Concurrent callers for the same tenant share one
	// exchange; every waiter receives the same outcome. The exchange must
	// not die with whichever caller happened to start it, so it runs
	// detached from that caller's cancellation; the exchanger's HTTP
	// timeout still bounds it.
	exchangeCtx := context.WithoutCancel(ctx)
	result, err, _ := m.group.Do(tenantName, func() (any, error) {
		return m.refresh(exchangeCtx, tenantName)
	})
	if err != nil {
		return nil, err
	}
	return result.(*APIConfig), nil
}

// usableConfigLocked returns the cached config if it is fresh and belongs to
// the requested tenant, nil otherwise. Caller must hold m.mu.
func (m *Manager) usableConfigLocked(tenantName string) *APIConfig {
	if m.active.TenantName != tenantName || m.active.AccessToken == "" {
		return nil
	}
	if !m.now().Before(m.active.Expiry) {
		return nil
	}
	return m.configLocked()
}

func (m *Manager) configLocked() *APIConfig {
	return &APIConfig{
		TenantName:   m.active.TenantName,
		AccessToken:  m.active.AccessToken,
		RestEndpoint: m.active.RestEndpoint,
		SoapEndpoint: m.active.SoapEndpoint,
		Identity:     m.active.Identity,
	}
}

// refresh performs one refresh-token exchange for the tenant and commits the
// result. The lock is never held across a network call.
func (m *Manager) refresh(ctx context.Context, tenantName string) (*APIConfig, error) {
	// Re-check under the singleflight: a racing caller may have completed
	// the refresh between our staleness check and joining the group.
	m.mu.Lock()
	if config := m.usableConfigLocked(tenantName); config != nil {
		m.mu.Unlock()
		return config, nil
	}
	invalidationsBefore := m.invalidations[tenantName]
	m.mu.Unlock()

	creds, err := m.vault.LoadCredentials(tenantName)
	if err != nil {
		if tgerrors.IsMissingCredentials(err) {
			return nil, m.requireLogin(tenantName, err)
		}
		return nil, err
	}

	logger.Debugw("refreshing access token", "tenant", tenantName)
	resp, err := m.exchanger.ExchangeRefreshToken(ctx,
		creds.AuthEndpoint, creds.ClientID, creds.ClientSecret, creds.RefreshToken)
	if err != nil {
		return nil, m.handleRefreshFailure(tenantName, err)
	}

	// The refresh grant does not return identity; look it up best-effort
	// against the userinfo endpoint on the auth base.
	identity := m.lookupIdentity(ctx, tokenex.AuthBase(creds.AuthEndpoint), resp.AccessToken)

	return m.commitRefresh(tenantName, resp, identity, creds.RefreshToken, invalidationsBefore)
}

// lookupIdentity fetches identity as enrichment; a failure degrades the
// session to one without identity rather than failing the refresh.
func (m *Manager) lookupIdentity(ctx context.Context, endpointBase, accessToken string) *tokenex.Identity {
	identity, err := m.exchanger.FetchIdentity(ctx, endpointBase, accessToken)
	if err != nil {
		logger.Warnf("proceeding without identity: %v", err)
		return nil
	}
	return identity
}

// commitRefresh writes the exchange result into the vault and the active
// session, unless the tenant was invalidated (logged out) while the exchange
// was in flight, in which case the result is discarded. The lock is held
// across the keyring write so a racing logout cannot interleave with the
// rotation; it was released for the network exchange itself.
func (m *Manager) commitRefresh(
	tenantName string,
	resp *tokenex.TokenResponse,
	identity *tokenex.Identity,
	previousRefreshToken string,
	invalidationsBefore uint64,
) (*APIConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.invalidations[tenantName] != invalidationsBefore {
		logger.Infow("discarding refresh result: tenant was logged out mid-exchange", "tenant", tenantName)
		return nil, m.requireLoginLocked(tenantName,
			tgerrors.NewMissingCredentialsError(
				fmt.Sprintf("session for tenant %s was invalidated during refresh", tenantName), nil))
	}

	// A lifetime at or inside the freshness buffer would produce a session
	// that is stale the moment it is cached, turning every GetConfig into
	// another exchange. Refuse it before touching the vault.
	if time.Duration(resp.ExpiresIn)*time.Second <= ExpiryBuffer {
		return nil, tgerrors.NewTransientError(
			fmt.Sprintf("token endpoint granted %ds, not beyond the %s freshness margin",
				resp.ExpiresIn, ExpiryBuffer), nil)
	}

	// Rotate the stored refresh token. The server may choose not to rotate,
	// in which case the stored value is left as is.
	if resp.RefreshToken != "" && resp.RefreshToken != previousRefreshToken {
		if err := m.vault.RotateRefreshToken(tenantName, resp.RefreshToken); err != nil {
			return nil, tgerrors.NewInternalError("failed to persist rotated refresh token", err)
		}
	}

	next := ActiveSession{
		TenantName:  tenantName,
		AccessToken: resp.AccessToken,
		Expiry:      m.expiry(resp.ExpiresIn),
		Identity:    identity,
	}

	// Instance URLs: values in the response are authoritative; otherwise
	// preserve what we already know, but only for the same tenant. A tenant
	// switch never carries fields over.
	next.RestEndpoint = resp.RestInstanceURL
	next.SoapEndpoint = resp.SoapInstanceURL
	if m.active.TenantName == tenantName {
		if next.RestEndpoint == "" {
			next.RestEndpoint = m.active.RestEndpoint
		}
		if next.SoapEndpoint == "" {
			next.SoapEndpoint = m.active.SoapEndpoint
		}
		if next.Identity == nil {
			next.Identity = m.active.Identity
		}
	}

	m.active = next
	return m.configLocked(), nil
}

// expiry converts a relative expires_in (seconds) into the absolute instant
// after which the token is considered stale, applying ExpiryBuffer.
func (m *Manager) expiry(expiresIn int64) time.Time {
	return m.now().Add(time.Duration(expiresIn)*time.Second - ExpiryBuffer)
}

// handleRefreshFailure maps an exchange failure onto state changes: a revoked
// grant purges the tenant's credentials entirely, transient failures leave
// them in place for a later retry. Either way the caller must re-authenticate
// interactively right now, so RequireLogin is published.
func (m *Manager) handleRefreshFailure(tenantName string, err error) error {
	if tgerrors.IsRevokedGrant(err) {
		logger.Warnw("refresh token revoked, purging stored credentials", "tenant", tenantName)

		m.mu.Lock()
		if delErr := m.vault.DeleteCredentials(tenantName); delErr != nil {
			logger.Errorf("failed to purge credentials for tenant %s: %v", tenantName, delErr)
		}
		m.invalidations[tenantName]++
		if m.active.TenantName == tenantName {
			m.active = ActiveSession{}
		}
		m.mu.Unlock()
	}

	return m.requireLogin(tenantName, err)
}

// requireLogin publishes a RequireLogin event carrying the human-readable
// reason and returns the error for the caller.
func (m *Manager) requireLogin(tenantName string, err error) error {
	m.bus.Publish(Event{
		Type:   EventRequireLogin,
		Tenant: tenantName,
		Reason: tgerrors.Reason(err),
	})
	return err
}

// requireLoginLocked is requireLogin for call sites already holding m.mu.
// Publishing does not need the lock, but the event must carry the reason
// decided under it.
func (m *Manager) requireLoginLocked(tenantName string, err *tgerrors.Error) error {
	m.bus.Publish(Event{
		Type:   EventRequireLogin,
		Tenant: tenantName,
		Reason: err.Message,
	})
	return err
}

// CommitLogin installs the result of an interactive login, replacing the
// active session wholesale, and publishes a successful TokenReceived event.
// This is the only path that populates the REST/SOAP endpoints from scratch.
func (m *Manager) CommitLogin(tenantName string, resp *tokenex.TokenResponse, identity *tokenex.Identity) *APIConfig {
	m.mu.Lock()
	m.active = ActiveSession{
		TenantName:   tenantName,
		AccessToken:  resp.AccessToken,
		Expiry:       m.expiry(resp.ExpiresIn),
		RestEndpoint: resp.RestInstanceURL,
		SoapEndpoint: resp.SoapInstanceURL,
		Identity:     identity,
	}
	config := m.configLocked()
	m.mu.Unlock()

	m.bus.Publish(Event{Type: EventTokenReceived, Tenant: tenantName, Success: true})
	return config
}

// NotifyLoginFailed publishes a failed TokenReceived event on behalf of the
// interactive login flow.
func (m *Manager) NotifyLoginFailed(tenantName string, err error) {
	m.bus.Publish(Event{
		Type:   EventTokenReceived,
		Tenant: tenantName,
		Reason: tgerrors.Reason(err),
	})
}

// Logout removes the tenant's stored credentials and, if that tenant is
// active, clears the session. Completion is signaled via LogoutSuccess.
func (m *Manager) Logout(_ context.Context, tenantName string) error {
	if tenantName == "" {
		return tgerrors.NewInvalidArgumentError("tenant name cannot be empty", nil)
	}

	m.mu.Lock()
	if err := m.vault.DeleteCredentials(tenantName); err != nil {
		m.mu.Unlock()
		return err
	}
	m.invalidations[tenantName]++
	if m.active.TenantName == tenantName {
		m.active = ActiveSession{}
	}
	m.mu.Unlock()

	logger.Infow("logged out", "tenant", tenantName)
	m.bus.Publish(Event{Type: EventLogoutSuccess, Tenant: tenantName, Success: true})
	return nil
}
