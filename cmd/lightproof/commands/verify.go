package commands

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// verifyResult is the --json output of verify
type verifyResult struct {
	Valid         bool   `json:"valid"`
	TxID          string `json:"tx_id"`
	Checkpoint    uint64 `json:"checkpoint,omitempty"`
	Epoch         uint64 `json:"epoch,omitempty"`
	Position      int    `json:"position"`
	SummaryDigest string `json:"summary_digest,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Error         string `json:"error,omitempty"`
}

func NewVerifyCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify <file> <tx_id>",
		Short: "Check a proof bundle file offline",
		Long: `Check a proof bundle file offline

Re-runs the checks a light client performs: every component must be
canonically encoded, the manifest must hash to the summary's content
digest, and the transaction and its effects must match the manifest entry.
Summary signatures are not checked; compare the printed summary digest
against a trusted committee-signed checkpoint.`,

		Example: `  lightproof verify tx.proof.zst 8Rt2nGjT3sX9QeRv5...
  lightproof verify - 8Rt2nGjT3sX9QeRv5... < tx.proof.zst`,

		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, args[0], args[1], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return cmd
}

func runVerify(cmd *cobra.Command, path, txIDStr string, asJSON bool) error {
	txID, err := types.ParseDigest(txIDStr)
	if err != nil {
		return proof.WrapError(proof.KindInvalidInput, err, "invalid transaction id")
	}

	var b *proof.Bundle
	if path == "-" {
		b, err = storage.ReadBundle(cmd.InOrStdin())
	} else {
		b, err = storage.NewOperations(nil).LoadBundle(path)
	}
	if err != nil {
		return err
	}

	result := verifyResult{TxID: txID.String()}

	verified, verr := proof.Verify(b, txID)
	if verr == nil {
		result.Valid = true
		result.Checkpoint = uint64(verified.Summary.SequenceNumber)
		result.Epoch = verified.Summary.Epoch
		result.Position = verified.Position
		if d, err := verified.Summary.Digest(); err == nil {
			result.SummaryDigest = d.String()
		}
	} else {
		result.Kind = string(proof.KindOf(verr))
		result.Error = verr.Error()
	}

	out := cmd.OutOrStdout()
	if asJSON {
		if err := json.NewEncoder(out).Encode(result); err != nil {
			return err
		}
		return verr
	}

	if verr != nil {
		fmt.Fprintf(out, "✗ Bundle does not prove %s\n", txID.Short())
		fmt.Fprintf(out, "  Kind:   %s\n", result.Kind)
		return verr
	}

	fmt.Fprintf(out, "✓ Bundle proves inclusion of %s\n", txID)
	fmt.Fprintf(out, "  Checkpoint:     %d (epoch %d)\n", result.Checkpoint, result.Epoch)
	fmt.Fprintf(out, "  Position:       %d\n", result.Position)
	fmt.Fprintf(out, "  Summary digest: %s\n", result.SummaryDigest)
	if isTTY(os.Stdout) {
		fmt.Fprintf(out, "\n  Signatures are not checked here; match the summary digest\n")
		fmt.Fprintf(out, "  against a committee-signed checkpoint you trust.\n")
	}
	return nil
}
