package app

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tenantgate/tenantgate/pkg/loginflow"
)

var (
	loginClientSecret string
	loginSkipBrowser  bool
)

var loginCmd = &cobra.Command{
	Use:   "login [tenant]",
	Short: "Log in to a tenant interactively",
	Long: `Opens the tenant's authorization page in the browser and waits for the
redirect. On success the tenant's credentials are stored in the OS credential
store and the session is ready for use.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		tenantName := args[0]

		deps, err := buildDeps()
		if err != nil {
			return err
		}

		cfg, err := deps.registry.Load(ctx)
		if err != nil {
			return err
		}
		tenant := cfg.FindTenant(tenantName)
		if tenant == nil {
			return fmt.Errorf("tenant %s is not registered, run 'tgate tenant add' first", tenantName)
		}

		secret := loginClientSecret
		if secret == "" {
			secret = os.Getenv("TENANTGATE_CLIENT_SECRET")
		}
		if secret == "" {
			return fmt.Errorf("client secret is required, pass --client-secret or set TENANTGATE_CLIENT_SECRET")
		}

		apiConfig, err := deps.logins.Login(ctx, &loginflow.Config{
			TenantName:   tenant.Name,
			AuthEndpoint: tenant.AuthEndpoint,
			ClientID:     tenant.ClientID,
			ClientSecret: secret,
			SkipBrowser:  loginSkipBrowser,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Logged in to tenant %s\n", apiConfig.TenantName)
		fmt.Printf("REST endpoint: %s\n", apiConfig.RestEndpoint)
		fmt.Printf("SOAP endpoint: %s\n", apiConfig.SoapEndpoint)
		if apiConfig.Identity != nil {
			fmt.Printf("User: %s (stack %s)\n", apiConfig.Identity.User.Email, apiConfig.Identity.Organization.StackKey)
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginClientSecret, "client-secret", "", "OAuth client secret for the tenant")
	loginCmd.Flags().BoolVar(&loginSkipBrowser, "skip-browser", false, "Print the authorization URL instead of opening a browser")
}
