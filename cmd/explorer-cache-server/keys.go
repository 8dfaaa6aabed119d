package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/explorer-cache/internal/storage"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for cache invalidation",
	}

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysRevokeCmd())

	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var name, outputFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create an API key accepted by DELETE /{provider}/api when AUTH_TYPE=api-key.

The key is shown once and cannot be retrieved later.

EXAMPLES:
  explorer-cache-server keys create --name ops
  explorer-cache-server keys create --name ci --output /secure/ci.key
  explorer-cache-server keys create --name ci --quiet | vault kv put secret/cache key=-
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			key, err := store.CreateAPIKey(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("creating API key: %w", err)
			}
			out := cmd.OutOrStdout()
			if quiet {
				fmt.Fprintln(out, key)
				return nil
			}
			if outputFile == "" {
				fmt.Fprintf(out, "API key %q (save it now, it cannot be shown again):\n\n    %s\n", name, key)
				return nil
			}
			if err := writeKeyFile(outputFile, key); err != nil {
				return err
			}
			fmt.Fprintf(out, "API key %q written to %s (mode 0600)\n", name, outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "label for the key (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write the key to this file instead of stdout")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the key")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func writeKeyFile(path, key string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			keys, err := store.ListAPIKeys(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing API keys: %w", err)
			}
			printKeys(cmd.OutOrStdout(), keys)
			return nil
		},
	}
}

func printKeys(out io.Writer, keys []storage.APIKey) {
	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys found")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED")
	for _, k := range keys {
		lastUsed := k.LastUsedAt
		if lastUsed == "" {
			lastUsed = "never"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.ID, k.Name, k.CreatedAt, lastUsed)
	}
	w.Flush()
}

func newKeysRevokeCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := revokeKey(cmd.Context(), store, keyID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key revoked: %s\n", keyID)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyID, "id", "", "key ID or unique ID prefix (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// revokeKey accepts a full ID or a prefix that matches exactly one key.
func revokeKey(ctx context.Context, store storage.APIKeyStore, id string) error {
	keys, err := store.ListAPIKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing API keys: %w", err)
	}

	var match string
	for _, k := range keys {
		if k.ID == id {
			match = k.ID
			break
		}
		if len(id) >= 8 && len(k.ID) >= len(id) && k.ID[:len(id)] == id {
			if match != "" {
				return fmt.Errorf("key prefix %s is ambiguous", id)
			}
			match = k.ID
		}
	}
	if match == "" {
		return fmt.Errorf("key not found: %s", id)
	}

	if err := store.RevokeAPIKey(ctx, match); err != nil {
		return fmt.Errorf("revoking API key: %w", err)
	}
	return nil
}
