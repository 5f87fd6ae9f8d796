package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tenantgate/tenantgate/pkg/config"
	"github.com/tenantgate/tenantgate/pkg/logger"
)

var (
	tenantAuthEndpoint string
	tenantClientID     string
)

func newTenantCommand() *cobra.Command {
	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the tenant registry",
	}

	addCmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Register a tenant",
		Args:  cobra.ExactArgs(1),
		RunE:  tenantAdd,
	}
	addCmd.Flags().StringVar(&tenantAuthEndpoint, "auth-endpoint", "", "Tenant token endpoint URL (https)")
	addCmd.Flags().StringVar(&tenantClientID, "client-id", "", "OAuth client ID for the tenant")

	tenantCmd.AddCommand(addCmd)
	tenantCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		Args:  cobra.NoArgs,
		RunE:  tenantList,
	})
	tenantCmd.AddCommand(&cobra.Command{
		Use:   "remove [name]",
		Short: "Remove a tenant and its stored credentials",
		Args:  cobra.ExactArgs(1),
		RunE:  tenantRemove,
	})

	return tenantCmd
}

func tenantAdd(_ *cobra.Command, args []string) error {
	tenant := config.Tenant{
		Name:         args[0],
		AuthEndpoint: tenantAuthEndpoint,
		ClientID:     tenantClientID,
	}
	if err := tenant.Validate(); err != nil {
		return err
	}

	err := config.UpdateConfig(func(c *config.Config) {
		c.UpsertTenant(tenant)
	})
	if err != nil {
		return err
	}

	fmt.Printf("Registered tenant %s\n", tenant.Name)
	return nil
}

func tenantList(_ *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrCreateConfig()
	if err != nil {
		return err
	}

	if len(cfg.Tenants) == 0 {
		fmt.Println("No tenants registered")
		return nil
	}
	for _, tenant := range cfg.Tenants {
		fmt.Printf("%s\t%s\t%s\n", tenant.Name, tenant.ClientID, tenant.AuthEndpoint)
	}
	return nil
}

func tenantRemove(_ *cobra.Command, args []string) error {
	name := args[0]

	removed := false
	err := config.UpdateConfig(func(c *config.Config) {
		removed = c.RemoveTenant(name)
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("tenant %s is not registered", name)
	}

	// Remove credentials too so nothing secret outlives the registry entry.
	deps, err := buildDeps()
	if err != nil {
		logger.Warnf("Credential store unavailable, skipping credential cleanup: %v", err)
	} else if err := deps.vault.DeleteCredentials(name); err != nil {
		logger.Warnf("Failed to delete credentials for tenant %s: %v", name, err)
	}

	fmt.Printf("Removed tenant %s\n", name)
	return nil
}
