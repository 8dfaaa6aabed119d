package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	metadataDomain "github.com/pendergraft/explorer-cache/internal/metadata/domain"
	"github.com/pendergraft/explorer-cache/internal/storage"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the durable cache",
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheInvalidateCmd())

	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show durable cache entry count and size",
		Long: `Show the number of entries and total payload size of the durable cache.

Hit and miss counters live in the server process and are only available
from GET /stats. Output is a table on a terminal and JSON otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading stats: %w", err)
			}
			tty := !asJSON && term.IsTerminal(int(os.Stdout.Fd()))
			return printStats(cmd.OutOrStdout(), stats, tty)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "always print JSON")

	return cmd
}

func printStats(out io.Writer, stats *storage.Stats, table bool) error {
	if !table {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ENTRIES\t%d\n", stats.Count)
	fmt.Fprintf(w, "SIZE\t%s\n", humanBytes(stats.SizeBytes))
	return w.Flush()
}

func humanBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "kMGTPE"[exp])
}

func newCacheInvalidateCmd() *cobra.Command {
	var provider, address string

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Remove every cached entry for a contract",
		Long: `Remove every durable entry for (provider, address), across all actions.

A running server may still answer from its in-memory tier for up to the
transient TTL.

EXAMPLES:
  explorer-cache-server cache invalidate --provider etherscan --address 0xdAC17F958D2ee523a2206206994597C13D831ec7
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			svc := metadataDomain.NewService(store, nil, nil, logger)

			removed, err := svc.Invalidate(cmd.Context(), provider, address)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "provider name (required)")
	cmd.Flags().StringVar(&address, "address", "", "contract address (required)")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}
