package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/proof"
)

type inspectOptions struct {
	diag   bool
	asJSON bool
}

// inspectResult is the --json output of inspect
type inspectResult struct {
	File           string                        `json:"file"`
	CompressedSize int                           `json:"compressed_size"`
	ContentSize    int                           `json:"content_size"`
	SHA256         string                        `json:"sha256"`
	Epoch          uint64                        `json:"epoch"`
	Summary        *checkpoint.Summary           `json:"checkpoint_summary,omitempty"`
	Contents       *checkpoint.Contents          `json:"checkpoint_contents,omitempty"`
	Record         *checkpoint.TransactionRecord `json:"transaction,omitempty"`
	DecodeErrors   []string                      `json:"decode_errors,omitempty"`
}

func NewInspectCommand() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show what a proof bundle file contains",
		Long: `Show what a proof bundle file contains

Decodes a bundle written by 'lightproof prove --out' (or '-' for stdin)
and prints its checkpoint summary, manifest and transaction. Nothing is
verified; use 'lightproof verify' for that.`,

		Example: `  lightproof inspect tx.proof.zst
  lightproof inspect tx.proof.zst --diag
  curl -H 'Accept-Encoding: zstd' $SERVER/proof/$TX | lightproof inspect -`,

		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.diag, "diag", false, "also print CBOR diagnostic notation of each component")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print as JSON")

	return cmd
}

func runInspect(cmd *cobra.Command, path string, opts *inspectOptions) error {
	var compressed []byte
	var err error
	if path == "-" {
		compressed, err = io.ReadAll(cmd.InOrStdin())
	} else {
		compressed, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read bundle: %w", err)
	}

	raw, err := storage.Decompress(compressed)
	if err != nil {
		return proof.WrapError(proof.KindInvalidInput, err, "not a compressed bundle file")
	}

	b, err := proof.UnmarshalBundle(raw)
	if err != nil {
		return err
	}

	result := inspectResult{
		File:           path,
		CompressedSize: len(compressed),
		ContentSize:    len(raw),
		SHA256:         storage.Hash(compressed),
		Epoch:          b.Epoch(),
	}

	var summary checkpoint.Summary
	if err := codec.Unmarshal(b.SummaryBytes(), &summary); err != nil {
		result.DecodeErrors = append(result.DecodeErrors, "summary: "+err.Error())
	} else {
		result.Summary = &summary
	}

	var contents checkpoint.Contents
	if err := codec.Unmarshal(b.ContentsBytes(), &contents); err != nil {
		result.DecodeErrors = append(result.DecodeErrors, "contents: "+err.Error())
	} else {
		result.Contents = &contents
	}

	var record checkpoint.TransactionRecord
	if err := codec.Unmarshal(b.TransactionBytes(), &record); err != nil {
		result.DecodeErrors = append(result.DecodeErrors, "transaction: "+err.Error())
	} else {
		result.Record = &record
	}

	out := cmd.OutOrStdout()

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printInspect(out, &result)

	if opts.diag {
		components := []struct {
			name string
			data []byte
		}{
			{"checkpoint summary", b.SummaryBytes()},
			{"checkpoint contents", b.ContentsBytes()},
			{"transaction", b.TransactionBytes()},
		}
		for _, c := range components {
			diag, err := codec.Diagnose(c.data)
			if err != nil {
				diag = "(undecodable: " + err.Error() + ")"
			}
			fmt.Fprintf(out, "\n%s (CBOR diagnostic)\n%s\n", c.name, diag)
		}
	}

	return nil
}

func printInspect(w io.Writer, r *inspectResult) {
	fmt.Fprintf(w, "Bundle file\n")
	fmt.Fprintf(w, "━━━━━━━━━━━\n")
	fmt.Fprintf(w, "  File:         %s\n", r.File)
	fmt.Fprintf(w, "  Size:         %s (%s uncompressed)\n", formatBytes(int64(r.CompressedSize)), formatBytes(int64(r.ContentSize)))
	fmt.Fprintf(w, "  SHA256:       %s\n", r.SHA256)
	fmt.Fprintf(w, "  Epoch:        %d\n", r.Epoch)

	if s := r.Summary; s != nil {
		fmt.Fprintf(w, "\nCheckpoint summary\n")
		fmt.Fprintf(w, "━━━━━━━━━━━━━━━━━━\n")
		fmt.Fprintf(w, "  Sequence:     %d\n", s.SequenceNumber)
		fmt.Fprintf(w, "  Epoch:        %d\n", s.Epoch)
		fmt.Fprintf(w, "  Network txs:  %d\n", s.NetworkTotalTransactions)
		fmt.Fprintf(w, "  Content:      %s\n", s.ContentDigest)
		if s.PreviousDigest != nil {
			fmt.Fprintf(w, "  Previous:     %s\n", s.PreviousDigest)
		}
		if digest, err := s.Digest(); err == nil {
			fmt.Fprintf(w, "  Digest:       %s\n", digest)
		}
		if s.Authenticator != nil {
			fmt.Fprintf(w, "  Signed:       epoch %d, %d-byte signature\n", s.Authenticator.Epoch, len(s.Authenticator.Signature))
		} else {
			fmt.Fprintf(w, "  Signed:       no authenticator\n")
		}
		if s.EndOfEpoch != nil {
			fmt.Fprintf(w, "  End of epoch: yes\n")
		}
	}

	if c := r.Contents; c != nil {
		fmt.Fprintf(w, "\nManifest\n")
		fmt.Fprintf(w, "━━━━━━━━\n")
		fmt.Fprintf(w, "  Entries:      %d\n", c.Len())
		for i, entry := range c.Transactions {
			if i == 10 {
				fmt.Fprintf(w, "  ... %d more\n", c.Len()-i)
				break
			}
			fmt.Fprintf(w, "  %4d  tx %s  effects %s\n", i, entry.Transaction.Short(), entry.Effects.Short())
		}
	}

	if rec := r.Record; rec != nil {
		fmt.Fprintf(w, "\nTransaction\n")
		fmt.Fprintf(w, "━━━━━━━━━━━\n")
		fmt.Fprintf(w, "  Digest:       %s\n", rec.Transaction.Digest())
		if rec.Effects.Status.Success {
			fmt.Fprintf(w, "  Status:       success\n")
		} else {
			fmt.Fprintf(w, "  Status:       failed (%s)\n", rec.Effects.Status.Error)
		}
		fmt.Fprintf(w, "  Executed in:  epoch %d\n", rec.Effects.ExecutedEpoch)
		fmt.Fprintf(w, "  Changes:      %d objects\n", len(rec.Effects.Changes))
		if rec.Events != nil {
			fmt.Fprintf(w, "  Events:       %d\n", len(rec.Events.Data))
		}
	}

	for _, e := range r.DecodeErrors {
		fmt.Fprintf(w, "\n⚠ %s\n", e)
	}
}
