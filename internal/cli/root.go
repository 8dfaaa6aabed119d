// Package cli implements the explorer-cache command line client.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorer-cache/pkg/client"
)

const defaultServer = "http://localhost:8080"

type globals struct {
	server string
	apiKey string
}

// Execute runs the CLI
func Execute(version string) error {
	return NewRootCmd(version).Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:           "explorer-cache",
		Short:         "Query an explorer-cache server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.server, "server", "", "server URL (default $EXPLORER_CACHE_SERVER or "+defaultServer+")")
	rootCmd.PersistentFlags().StringVar(&g.apiKey, "api-key", "", "API key for invalidation")

	rootCmd.AddCommand(newSourceCmd(g))
	rootCmd.AddCommand(newABICmd(g))
	rootCmd.AddCommand(newArgsCmd(g))
	rootCmd.AddCommand(newStatsCmd(g))
	rootCmd.AddCommand(newInvalidateCmd(g))
	rootCmd.AddCommand(newAuthCmd(g))

	return rootCmd
}

// serverURL resolves flag, then environment, then default.
func (g *globals) serverURL() string {
	if g.server != "" {
		return g.server
	}
	if env := os.Getenv("EXPLORER_CACHE_SERVER"); env != "" {
		return env
	}
	return defaultServer
}

// key resolves flag, then environment, then the credentials file.
func (g *globals) key() string {
	if g.apiKey != "" {
		return g.apiKey
	}
	if env := os.Getenv("EXPLORER_CACHE_API_KEY"); env != "" {
		return env
	}
	return getCredential(g.serverURL())
}

func (g *globals) client() *client.Client {
	return client.New(g.serverURL(), g.key())
}
