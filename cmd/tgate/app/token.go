package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var tokenJSON bool

var tokenCmd = &cobra.Command{
	Use:   "token [tenant]",
	Short: "Print a valid access token for a tenant",
	Long: `Prints an access token for the tenant, refreshing it first if the cached one
is missing or about to expire. Fails if the tenant needs an interactive login.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}

		apiConfig, err := deps.sessions.GetConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if tokenJSON {
			return json.NewEncoder(os.Stdout).Encode(apiConfig)
		}
		fmt.Println(apiConfig.AccessToken)
		return nil
	},
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenJSON, "json", false, "Print the full API configuration as JSON")
}
