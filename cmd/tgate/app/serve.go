package app

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	s "github.com/tenantgate/tenantgate/pkg/api"
)

var (
	host string
	port int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local tenantgate API server",
	Long:  `Starts the local API server the desktop UI connects to and listens for HTTP requests.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Ensure server is shutdown gracefully on Ctrl+C.
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()

		deps, err := buildDeps()
		if err != nil {
			return err
		}

		address := fmt.Sprintf("%s:%d", host, port)
		return s.Serve(ctx, address, s.Deps{
			Sessions: deps.sessions,
			Logins:   deps.logins,
			Registry: deps.registry,
			Vault:    deps.vault,
			Keyring:  deps.keyring,
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind the server to")
	serveCmd.Flags().IntVar(&port, "port", 9080, "Port to bind the server to")
}
