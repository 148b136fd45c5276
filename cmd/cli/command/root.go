package command

// root.go defines the root command for the cinecircle CLI.
// set up the global flags here.

import (
	"errors"
	"fmt"
	"os"

	"cinecircle/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var (
	apiURL  string // Global flag for API server URL
	tcpAddr string // realtime TCP transport address
	token   string // authentication token(jwt)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cinecircle",
	Short: "cinecircle - chat and notifications from the terminal",
	Long: `cinecircle talks to the cinecircle API and its realtime TCP transport. Use it to:
- Watch live messages, presence and notifications
- Send and manage direct messages
- Read and clear notifications

The token is taken from --token or the CINECIRCLE_TOKEN environment variable.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "localhost:8081", "realtime TCP address")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("CINECIRCLE_TOKEN"), "JWT access token")
}

var errNoToken = errors.New("no token: pass --token or set CINECIRCLE_TOKEN")

func httpClient() (*client.HTTPClient, error) {
	if token == "" {
		return nil, errNoToken
	}
	return client.NewHTTPClient(apiURL, token), nil
}
