package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/explorer-cache/pkg/client"
)

func newSourceCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "source <provider> <address>",
		Short: "Print verified source metadata for a contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, entries, err := g.client().SourceCode(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 || entries[0].SourceCode == "" {
				return fmt.Errorf("contract is not verified on %s (%s)", args[0], env.Message)
			}
			if !isTerminal(out) {
				return writeJSON(out, entries[0])
			}
			e := entries[0]
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "NAME\t%s\n", e.ContractName)
			fmt.Fprintf(w, "COMPILER\t%s\n", e.CompilerVersion)
			fmt.Fprintf(w, "OPTIMIZED\t%s (%s runs)\n", e.OptimizationUsed, e.Runs)
			fmt.Fprintf(w, "LICENSE\t%s\n", e.LicenseType)
			fmt.Fprintf(w, "CONSTRUCTOR ARGS\t%s\n", e.ConstructorArguments)
			if e.Proxy == "1" {
				fmt.Fprintf(w, "IMPLEMENTATION\t%s\n", e.Implementation)
			}
			return w.Flush()
		},
	}
}

func newABICmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "abi <provider> <address>",
		Short: "Print the ABI of a verified contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.client().ABI(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			var abi string
			if err := json.Unmarshal(env.Result, &abi); err != nil || env.Status != "1" {
				return fmt.Errorf("no ABI available: %s", env.Result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), abi)
			return nil
		},
	}
}

func newArgsCmd(g *globals) *cobra.Command {
	var opts client.ConstructorArgsOptions

	cmd := &cobra.Command{
		Use:   "args <provider> <address>",
		Short: "Print the ABI-encoded constructor arguments of a contract",
		Long: `Print constructor arguments. Verified contracts are answered from the
explorer; others are derived from the creation transaction, which needs
--bytecode and an RPC endpoint configured for the provider's chain.

EXAMPLES:
  explorer-cache args etherscan 0xdAC17F958D2ee523a2206206994597C13D831ec7
  explorer-cache args etherscan 0x... --on-chain --bytecode 0x6080...
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := g.client().ConstructorArgs(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.ConstructorArgs)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.OnChainLookup, "on-chain", false, "skip the explorer and derive from the creation transaction")
	cmd.Flags().StringVar(&opts.CreationTxHash, "tx", "", "creation transaction hash")
	cmd.Flags().StringVar(&opts.Bytecode, "bytecode", "", "compiled creation bytecode without arguments")

	return cmd
}

func newStatsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show durable cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := g.client().Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return writeJSON(out, stats)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HITS\tMISSES\tENTRIES\tBYTES")
			fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", stats.Hits, stats.Misses, stats.Count, stats.Size)
			return w.Flush()
		},
	}
}

func newInvalidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <provider> <address>",
		Short: "Drop every cached entry for a contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := g.client().Invalidate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", deleted)
			return nil
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether out is an interactive terminal.
func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
