package app

import (
	"fmt"

	"github.com/tenantgate/tenantgate/pkg/config"
	"github.com/tenantgate/tenantgate/pkg/loginflow"
	"github.com/tenantgate/tenantgate/pkg/session"
	"github.com/tenantgate/tenantgate/pkg/tokenex"
	"github.com/tenantgate/tenantgate/pkg/vault"
	"github.com/tenantgate/tenantgate/pkg/vault/keyring"
)

// appDeps bundles the long-lived collaborators shared by all commands.
type appDeps struct {
	keyring  keyring.Provider
	vault    *vault.Vault
	exchange *tokenex.Client
	sessions *session.Manager
	logins   *loginflow.Coordinator
	registry config.Store
}

// buildDeps wires the application together against the OS credential store.
func buildDeps() (*appDeps, error) {
	provider := keyring.NewSystemProvider()
	if !provider.IsAvailable() {
		return nil, fmt.Errorf("OS credential store %s is not available", provider.Name())
	}
	v := vault.New(provider)

	exchange := tokenex.NewClient()
	sessions := session.NewManager(v, exchange)

	return &appDeps{
		keyring:  provider,
		vault:    v,
		exchange: exchange,
		sessions: sessions,
		logins:   loginflow.NewCoordinator(v, sessions, exchange),
		registry: config.NewLocalStore(""),
	}, nil
}
