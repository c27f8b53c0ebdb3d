// Command virtrpcctl is the admin CLI for virtrpcd's side-channel HTTP API:
// login, list open sessions, and manage credstore users.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "virtrpcctl",
	Short: "Admin CLI for the virtrpcd RPC dispatch daemon",
	Long: `virtrpcctl talks to virtrpcd's admin API to list open RPC sessions
and manage the credential store that backs SASL PLAIN authentication.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "admin API base URL (default: last-used server from login)")
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
