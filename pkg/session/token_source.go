package session

import (
	"context"

	"golang.org/x/oauth2"
)

// managerTokenSource adapts the session manager to oauth2.TokenSource so
// downstream HTTP clients can consume managed tokens directly.
type managerTokenSource struct {
	manager *Manager
	tenant  string
}

// TokenSource returns an oauth2.TokenSource that serves tokens for the given
// tenant. Every Token call goes through GetConfig and therefore benefits from
// the cache, the expiry buffer, and the single-flight refresh.
func (m *Manager) TokenSource(tenantName string) oauth2.TokenSource {
	return &managerTokenSource{manager: m, tenant: tenantName}
}

// Token returns a valid token for the tenant, refreshing it if necessary.
func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	config, err := s.manager.GetConfig(context.Background(), s.tenant)
	if err != nil {
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken: config.AccessToken,
		TokenType:   "Bearer",
	}
	if active := s.manager.Active(); active.TenantName == s.tenant {
		token.Expiry = active.Expiry
	}
	return token, nil
}
