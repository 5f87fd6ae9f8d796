// Package config contains the definition of the application config structure
// and logic required to load and update it. The config file is a registry of
// known tenants; secrets never live here, they belong to the vault.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	tgerrors "github.com/tenantgate/tenantgate/pkg/errors"
	"github.com/tenantgate/tenantgate/pkg/networking"
)

// Config represents the configuration of the application.
type Config struct {
	Tenants []Tenant `yaml:"tenants"`
	Server  Server   `yaml:"server,omitempty"`
}

// Tenant is one registered tenant. The client secret and refresh token are
// deliberately absent: only non-sensitive coordinates are kept on disk.
type Tenant struct {
	Name         string `yaml:"name"`
	AuthEndpoint string `yaml:"auth_endpoint"`
	ClientID     string `yaml:"client_id"`
}

// Validate checks that a tenant entry is usable.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return tgerrors.NewInvalidArgumentError("tenant name is required", nil)
	}
	if t.ClientID == "" {
		return tgerrors.NewInvalidArgumentError("tenant client ID is required", nil)
	}
	if err := networking.ValidateEndpointURL(t.AuthEndpoint); err != nil {
		return tgerrors.NewInvalidArgumentError("invalid tenant auth endpoint", err)
	}
	return nil
}

// Server contains settings for the local API server.
type Server struct {
	Address string `yaml:"address,omitempty"`
}

// FindTenant returns the tenant with the given name, or nil.
func (c *Config) FindTenant(name string) *Tenant {
	for i := range c.Tenants {
		if c.Tenants[i].Name == name {
			return &c.Tenants[i]
		}
	}
	return nil
}

// UpsertTenant adds the tenant or replaces an existing entry with the same
// name, keeping the registry sorted by name.
func (c *Config) UpsertTenant(tenant Tenant) {
	for i := range c.Tenants {
		if c.Tenants[i].Name == tenant.Name {
			c.Tenants[i] = tenant
			return
		}
	}
	c.Tenants = append(c.Tenants, tenant)
	sort.Slice(c.Tenants, func(i, j int) bool {
		return c.Tenants[i].Name < c.Tenants[j].Name
	})
}

// RemoveTenant deletes the entry with the given name. It reports whether an
// entry was removed.
func (c *Config) RemoveTenant(name string) bool {
	for i := range c.Tenants {
		if c.Tenants[i].Name == name {
			c.Tenants = append(c.Tenants[:i], c.Tenants[i+1:]...)
			return true
		}
	}
	return false
}

// defaultPathGenerator generates the default config path using xdg
var defaultPathGenerator = func() (string, error) {
	return xdg.ConfigFile("tenantgate/config.yaml")
}

// getConfigPath is the current path generator, can be replaced in tests
var getConfigPath = defaultPathGenerator

// createNewConfigWithDefaults creates a new config with default values
func createNewConfigWithDefaults() Config {
	return Config{}
}

// LoadOrCreateConfig fetches the application configuration.
// If it does not already exist - it will create a new config file with default values.
func LoadOrCreateConfig() (*Config, error) {
	return LoadOrCreateConfigWithPath("")
}

// LoadOrCreateConfigWithPath fetches the application configuration from a specific path.
// If configPath is empty, it uses the default path.
func LoadOrCreateConfigWithPath(configPath string) (*Config, error) {
	store := NewLocalStore(configPath)
	return store.Load(context.Background())
}

// Save serializes the config struct and writes it to disk.
func (c *Config) save() error {
	return c.saveToPath("")
}

// saveToPath serializes the config struct and writes it to a specific path.
// If configPath is empty, it uses the default path.
func (c *Config) saveToPath(configPath string) error {
	if configPath == "" {
		var err error
		configPath, err = getConfigPath()
		if err != nil {
			return fmt.Errorf("unable to fetch config path: %w", err)
		}
	}

	configBytes, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing config file: %w", err)
	}

	err = os.WriteFile(configPath, configBytes, 0600)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// UpdateConfig loads the config, applies changes under a file lock, and
// saves it back.
func UpdateConfig(updateFn func(*Config)) error {
	return UpdateConfigAtPath("", updateFn)
}

// UpdateConfigAtPath is UpdateConfig against a specific path.
// If configPath is empty, it uses the default path.
func UpdateConfigAtPath(configPath string, updateFn func(*Config)) error {
	store := NewLocalStore(configPath)
	return store.Update(context.Background(), updateFn)
}
