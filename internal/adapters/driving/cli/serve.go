package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API. Authentication is delegated to the upstream
proxy; the server trusts the X-User-ID and X-User-Role headers.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveHandler == nil {
		return errors.New("server not configured")
	}
	cmd.Printf("carevault listening on %s\n", serveAddr)
	return serveHandler(serveAddr)
}
