package loginflow

import (
	"context"
	"fmt"
	"sync"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/logger"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tokenex"
	"github.com/tenantgate/tenantgate/pkg/vault"
)

// Exchanger is the subset of the token exchange client the coordinator needs.
type Exchanger interface {
	ExchangeCode(ctx context.Context, endpoint, clientID, clientSecret, code, redirectURI string) (*tokenex.TokenResponse, error)
	FetchIdentity(ctx context.Context, endpointBase, accessToken string) (*tokenex.Identity, error)
}

// Coordinator runs interactive logins end to end: browser flow, code
// exchange, vault write, session commit. It admits at most one active flow
// per tenant.
type Coordinator struct {
	vault     *vault.Vault
	sessions  *session.Manager
	exchanger Exchanger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewCoordinator creates a login coordinator over the given collaborators.
func NewCoordinator(v *vault.Vault, sessions *session.Manager, exchanger Exchanger) *Coordinator {
	return &Coordinator{
		vault:     v,
		sessions:  sessions,
		exchanger: exchanger,
		active:    make(map[string]struct{}),
	}
}

// Login runs a full interactive login for the tenant described by config.
// On success the credential quadruple is in the vault, the session holds the
// new token, and a TokenReceived event has been published. On failure a
// failed TokenReceived event carries the reason and no state is changed,
// except that a second login for a tenant whose flow is still in progress is
// rejected without publishing anything.
func (c *Coordinator) Login(ctx context.Context, config *Config) (*session.APIConfig, error) {
	flow, err := NewFlow(config)
	if err != nil {
		return nil, err
	}

	if err := c.reserve(config.TenantName); err != nil {
		return nil, err
	}
	defer c.release(config.TenantName)

	code, err := flow.Run(ctx)
	if err != nil {
		c.sessions.NotifyLoginFailed(config.TenantName, err)
		return nil, err
	}

	return c.complete(ctx, flow, code)
}

// complete exchanges the authorization code and commits the results.
func (c *Coordinator) complete(ctx context.Context, flow *Flow, code string) (*session.APIConfig, error) {
	config := flow.config

	resp, err := c.exchanger.ExchangeCode(
		ctx, config.AuthEndpoint, config.ClientID, config.ClientSecret, code, flow.RedirectURI())
	if err != nil {
		c.sessions.NotifyLoginFailed(config.TenantName, err)
		return nil, err
	}

	if resp.RefreshToken == "" {
		err := tgerrors.NewInternalError("token response did not include a refresh token", nil)
		c.sessions.NotifyLoginFailed(config.TenantName, err)
		return nil, err
	}

	// Identity is decoration: a failure here downgrades the session record,
	// never the login.
	var identity *tokenex.Identity
	identity, err = c.exchanger.FetchIdentity(ctx, tokenex.AuthBase(config.AuthEndpoint), resp.AccessToken)
	if err != nil {
		logger.Warnf("Identity lookup failed for tenant %s: %v", config.TenantName, err)
		identity = nil
	}

	creds := vault.TenantCredentials{
		RefreshToken: resp.RefreshToken,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		AuthEndpoint: config.AuthEndpoint,
	}
	if err := c.vault.StoreCredentials(config.TenantName, creds); err != nil {
		err = tgerrors.NewInternalError("failed to store tenant credentials", err)
		c.sessions.NotifyLoginFailed(config.TenantName, err)
		return nil, err
	}

	return c.sessions.CommitLogin(config.TenantName, resp, identity), nil
}

// reserve marks a tenant's login as in progress.
func (c *Coordinator) reserve(tenantName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[tenantName]; ok {
		return tgerrors.NewInvalidArgumentError(
			fmt.Sprintf("a login for tenant %s is already in progress", tenantName), nil)
	}
	c.active[tenantName] = struct{}{}
	return nil
}

func (c *Coordinator) release(tenantName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, tenantName)
}
