package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Credentials stores API keys per server
type Credentials struct {
	Servers map[string]ServerCredential `yaml:"servers"`
}

// ServerCredential stores credentials for a single server
type ServerCredential struct {
	APIKey string `yaml:"api_key"`
}

func newAuthCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage saved API keys",
	}

	cmd.AddCommand(newAuthLoginCmd(g))
	cmd.AddCommand(newAuthLogoutCmd(g))
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Save an API key for the server",
		Long: `Save an API key for --server in ~/.explorer-cache/credentials (mode 0600).

The key is read from --api-key, or prompted for without echo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := g.apiKey
			if key == "" {
				var err error
				fmt.Fprintf(cmd.OutOrStdout(), "Enter API key for %s: ", g.serverURL())
				if key, err = readSecret(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("reading API key: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if key == "" {
				return errors.New("API key cannot be empty")
			}
			if err := saveCredential(g.serverURL(), key); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved key %s for %s\n", maskAPIKey(key), g.serverURL())
			return nil
		},
	}
}

// readSecret reads without echo on a terminal, or one line otherwise.
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		return strings.TrimSpace(string(b)), err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newAuthLogoutCmd(g *globals) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved API key for the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := os.Remove(credentialsFilePath()); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing credentials: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All credentials cleared")
				return nil
			}

			creds, err := loadCredentials()
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading credentials: %w", err)
			}
			if creds == nil {
				creds = &Credentials{Servers: map[string]ServerCredential{}}
			}
			if _, ok := creds.Servers[g.serverURL()]; !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "No credentials found for %s\n", g.serverURL())
				return nil
			}
			delete(creds.Servers, g.serverURL())
			if err := writeCredentials(creds); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out from %s\n", g.serverURL())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "clear credentials for every server")

	return cmd
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List servers with saved keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			creds, err := loadCredentials()
			if err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("loading credentials: %w", err)
			}
			if creds == nil || len(creds.Servers) == 0 {
				fmt.Fprintln(out, "No saved credentials")
				return nil
			}
			servers := make([]string, 0, len(creds.Servers))
			for s := range creds.Servers {
				servers = append(servers, s)
			}
			sort.Strings(servers)
			for _, s := range servers {
				fmt.Fprintf(out, "%s\t%s\n", s, maskAPIKey(creds.Servers[s].APIKey))
			}
			return nil
		},
	}
}

func credentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".explorer-cache"
	}
	return filepath.Join(home, ".explorer-cache")
}

func credentialsFilePath() string {
	return filepath.Join(credentialsDir(), "credentials")
}

func loadCredentials() (*Credentials, error) {
	data, err := os.ReadFile(credentialsFilePath())
	if err != nil {
		return nil, err
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}
	return &creds, nil
}

func writeCredentials(creds *Credentials) error {
	if err := os.MkdirAll(credentialsDir(), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return err
	}
	return os.WriteFile(credentialsFilePath(), data, 0600)
}

func saveCredential(serverURL, apiKey string) error {
	creds, err := loadCredentials()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		creds = &Credentials{Servers: make(map[string]ServerCredential)}
	}
	creds.Servers[serverURL] = ServerCredential{APIKey: apiKey}
	return writeCredentials(creds)
}

func getCredential(serverURL string) string {
	creds, err := loadCredentials()
	if err != nil {
		return ""
	}
	return creds.Servers[serverURL].APIKey
}

func maskAPIKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
