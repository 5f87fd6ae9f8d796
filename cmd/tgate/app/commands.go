// Package app provides the entry point for the tenantgate command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tenantgate/tenantgate/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "tgate",
	DisableAutoGenTag: true,
	Short:             "Tenantgate manages multi-tenant API sessions for the desktop client",
	Long: `Tenantgate keeps one authenticated session per machine against a multi-tenant
REST/SOAP API. It stores each tenant's OAuth credentials in the OS credential
store, refreshes access tokens before they expire, and exposes a small local
HTTP API that the desktop UI talks to.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the tenantgate CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(newTenantCommand())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
