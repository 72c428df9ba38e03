package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

type proveOptions struct {
	ledger ledgerOptions
	out    string
	format string
}

func NewProveCommand() *cobra.Command {
	opts := &proveOptions{}

	cmd := &cobra.Command{
		Use:   "prove <tx_id>",
		Short: "Build a proof bundle for one transaction",
		Long: `Build a proof bundle for one transaction

Queries the full node once, cross-validates the transaction against its
checkpoint and writes the bundle. With --out the bundle is saved as a
zstd-compressed file; otherwise it is printed (a summary on a terminal,
JSON when piped).`,

		Example: `  # Save a bundle file
  lightproof prove 8Rt2nGjT3sX9QeRv5... --out tx.proof.zst

  # Print the JSON response
  lightproof prove 8Rt2nGjT3sX9QeRv5... --format json`,

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProve(cmd, args[0], opts)
		},
	}

	addLedgerFlags(cmd, &opts.ledger)
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the bundle to this file (use a directory to name it <tx_id>"+types.BUNDLE_FILE_EXT+")")
	cmd.Flags().StringVar(&opts.format, "format", "", "stdout format: summary or json (default: summary on a terminal, json otherwise)")

	return cmd
}

func runProve(cmd *cobra.Command, txID string, opts *proveOptions) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	client := newLedgerClient(&opts.ledger, logger)
	defer client.Close()

	prover := proof.NewProver(client)

	start := time.Now()
	b, err := prover.ProveString(cmd.Context(), txID)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if opts.out != "" {
		path := opts.out
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, txID+types.BUNDLE_FILE_EXT)
		}

		saved, err := storage.NewOperations(logger).SaveBundle(path, b)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Proof saved to %s\n", saved.Path)
		fmt.Fprintf(cmd.ErrOrStderr(), "  Size:   %s (%s uncompressed)\n", formatBytes(saved.CompressedSize), formatBytes(saved.ContentSize))
		fmt.Fprintf(cmd.ErrOrStderr(), "  SHA256: %s\n", saved.CompressedHash)
		return nil
	}

	format := opts.format
	if format == "" {
		format = "json"
		if isTTY(os.Stdout) {
			format = "summary"
		}
	}

	switch format {
	case "json":
		return json.NewEncoder(cmd.OutOrStdout()).Encode(b.Response())
	case "summary":
		return printBundleSummary(cmd.OutOrStdout(), b, elapsed)
	default:
		return fmt.Errorf("unknown format %q (want summary or json)", format)
	}
}

func printBundleSummary(w io.Writer, b *proof.Bundle, elapsed time.Duration) error {
	fmt.Fprintf(w, "Proof bundle\n")
	fmt.Fprintf(w, "━━━━━━━━━━━━\n")
	fmt.Fprintf(w, "  Epoch:        %d\n", b.Epoch())
	fmt.Fprintf(w, "  Summary:      %s\n", formatBytes(int64(len(b.SummaryBytes()))))
	fmt.Fprintf(w, "  Contents:     %s\n", formatBytes(int64(len(b.ContentsBytes()))))
	fmt.Fprintf(w, "  Transaction:  %s\n", formatBytes(int64(len(b.TransactionBytes()))))
	fmt.Fprintf(w, "  Total:        %s\n", formatBytes(int64(b.Size())))
	if elapsed > 0 {
		fmt.Fprintf(w, "  Took:         %s\n", elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "\nUse --out <file> to save it, or --format json to print it.\n")
	return nil
}

// formatBytes formats byte counts
func formatBytes(n int64) string {
	const unit = 1000
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
