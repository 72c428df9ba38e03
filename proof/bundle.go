package proof

import (
	"bytes"
	"fmt"

	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Bundle is the self-contained artifact a light client needs to check
// inclusion of one transaction: the epoch plus the canonical bytes of the
// checkpoint summary, contents and transaction record.
//
// A Bundle is immutable; accessors hand out copies.
type Bundle struct {
	epoch       uint64
	summary     []byte
	contents    []byte
	transaction []byte
}

// Response is the JSON shape returned to callers
type Response struct {
	EpochID                 uint64 `json:"ckp_epoch_id"`
	CheckpointSummaryBytes  []byte `json:"checkpoint_summary_bytes"`
	CheckpointContentsBytes []byte `json:"checkpoint_contents_bytes"`
	TransactionBytes        []byte `json:"transaction_bytes"`
}

// bundleFile is the canonical on-disk / application/cbor form
type bundleFile struct {
	Version     int    `cbor:"version"`
	Epoch       uint64 `cbor:"epoch"`
	Summary     []byte `cbor:"summary"`
	Contents    []byte `cbor:"contents"`
	Transaction []byte `cbor:"transaction"`
}

// Assemble canonically serializes a validated triple. Same logical input
// always yields the same bytes.
func Assemble(v *Validated) (*Bundle, error) {
	if v == nil {
		return nil, NewError(KindInternal, "cannot assemble a bundle without a validated triple")
	}

	summary, err := codec.Marshal(v.summary)
	if err != nil {
		return nil, WrapError(KindInternal, err, "failed to encode checkpoint summary")
	}

	contents, err := codec.Marshal(v.contents)
	if err != nil {
		return nil, WrapError(KindInternal, err, "failed to encode checkpoint contents")
	}

	transaction, err := codec.Marshal(v.record)
	if err != nil {
		return nil, WrapError(KindInternal, err, "failed to encode transaction record")
	}

	return &Bundle{
		epoch:       v.summary.Epoch,
		summary:     summary,
		contents:    contents,
		transaction: transaction,
	}, nil
}

// Epoch returns the epoch of the checkpoint
func (b *Bundle) Epoch() uint64 { return b.epoch }

// SummaryBytes returns the canonical checkpoint summary bytes
func (b *Bundle) SummaryBytes() []byte { return bytes.Clone(b.summary) }

// ContentsBytes returns the canonical checkpoint contents bytes
func (b *Bundle) ContentsBytes() []byte { return bytes.Clone(b.contents) }

// TransactionBytes returns the canonical transaction record bytes
func (b *Bundle) TransactionBytes() []byte { return bytes.Clone(b.transaction) }

// Size returns the total payload size in bytes
func (b *Bundle) Size() int {
	return len(b.summary) + len(b.contents) + len(b.transaction)
}

// Equal reports whether two bundles are byte-identical
func (b *Bundle) Equal(other *Bundle) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.epoch == other.epoch &&
		bytes.Equal(b.summary, other.summary) &&
		bytes.Equal(b.contents, other.contents) &&
		bytes.Equal(b.transaction, other.transaction)
}

// Response returns the caller-facing JSON shape
func (b *Bundle) Response() Response {
	return Response{
		EpochID:                 b.epoch,
		CheckpointSummaryBytes:  b.SummaryBytes(),
		CheckpointContentsBytes: b.ContentsBytes(),
		TransactionBytes:        b.TransactionBytes(),
	}
}

// FromResponse rebuilds a bundle from a caller-facing response, e.g. one
// received from a remote server. The result is unverified; pass it to Verify.
func FromResponse(r Response) *Bundle {
	return &Bundle{
		epoch:       r.EpochID,
		summary:     bytes.Clone(r.CheckpointSummaryBytes),
		contents:    bytes.Clone(r.CheckpointContentsBytes),
		transaction: bytes.Clone(r.TransactionBytes),
	}
}

// MarshalBinary encodes the bundle in its canonical file form
func (b *Bundle) MarshalBinary() ([]byte, error) {
	return codec.Marshal(bundleFile{
		Version:     types.BUNDLE_VERSION,
		Epoch:       b.epoch,
		Summary:     b.summary,
		Contents:    b.contents,
		Transaction: b.transaction,
	})
}

// UnmarshalBundle decodes a bundle produced by MarshalBinary
func UnmarshalBundle(data []byte) (*Bundle, error) {
	var f bundleFile
	if err := codec.Unmarshal(data, &f); err != nil {
		return nil, WrapError(KindInvalidInput, err, "malformed bundle")
	}
	if f.Version != types.BUNDLE_VERSION {
		return nil, NewError(KindInvalidInput, "unsupported bundle version %d", f.Version)
	}
	if len(f.Summary) == 0 || len(f.Contents) == 0 || len(f.Transaction) == 0 {
		return nil, NewError(KindInvalidInput, "bundle is missing components")
	}

	return &Bundle{
		epoch:       f.Epoch,
		summary:     f.Summary,
		contents:    f.Contents,
		transaction: f.Transaction,
	}, nil
}

func (b *Bundle) String() string {
	return fmt.Sprintf("Bundle{epoch=%d summary=%dB contents=%dB transaction=%dB}",
		b.epoch, len(b.summary), len(b.contents), len(b.transaction))
}
