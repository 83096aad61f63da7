// Package cli provides the command-line interface for helix.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/helix/internal/client"
	"github.com/raphaelgruber/helix/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	serverURL string
	user      string

	cfg       config.Config
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "helix",
	Short: "Classify and file documents, media and links",
	Long: `Helix ingests batches of files or links. Every item is converted to text,
named and tagged by a language model, and filed under docs, media or links
with a JSON .meta sidecar describing it.

Commands talk to a running helix-server (HELIX_URL) on behalf of one
user (HELIX_USER).`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if serverURL == "" {
			serverURL = cfg.ServerURL
		}
		if user == "" {
			user = cfg.User
		}
		apiClient = client.New(serverURL, user)
		return nil
	},
}

// ExecuteContext runs the root command; ctx reaches every command via cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "helix server URL (default $HELIX_URL)")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "owner id to act as (default $HELIX_USER)")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(mcpCmd)
}

// debugf prints to stderr when --verbose is set.
func debugf(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
