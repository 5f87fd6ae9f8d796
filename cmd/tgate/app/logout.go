package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout [tenant]",
	Short: "Log out of a tenant",
	Long:  `Removes the tenant's stored credentials and clears its session if active.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		if err := deps.sessions.Logout(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("Logged out of tenant %s\n", args[0])
		return nil
	},
}
