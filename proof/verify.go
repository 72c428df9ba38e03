package proof

import (
	"bytes"

	"tangled.org/atscan.net/lightproof/checkpoint"
	"tangled.org/atscan.net/lightproof/internal/codec"
	"tangled.org/atscan.net/lightproof/internal/types"
)

// Verified is the decoded content of a bundle that passed Verify
type Verified struct {
	Summary  checkpoint.Summary
	Contents checkpoint.Contents
	Record   checkpoint.TransactionRecord
	Position int
}

// Verify is the consumer-side check of a bundle: it decodes the three
// components, requires them to be canonically encoded and re-runs the
// cross-validation a light client would. It does not check the summary
// authenticator against a committee; callers must do that against
// Verified.Summary.
func Verify(b *Bundle, txID types.Digest) (*Verified, error) {
	if b == nil {
		return nil, NewError(KindInvalidInput, "nil bundle")
	}

	out := &Verified{}
	if err := decodeCanonical("checkpoint summary", b.summary, &out.Summary); err != nil {
		return nil, err
	}
	if err := decodeCanonical("checkpoint contents", b.contents, &out.Contents); err != nil {
		return nil, err
	}
	if err := decodeCanonical("transaction record", b.transaction, &out.Record); err != nil {
		return nil, err
	}

	if b.epoch != out.Summary.Epoch {
		return nil, NewError(KindIntegrityMismatch,
			"bundle epoch %d does not match summary epoch %d", b.epoch, out.Summary.Epoch)
	}

	data := &checkpoint.Data{
		Summary:      out.Summary,
		Contents:     out.Contents,
		Transactions: []checkpoint.TransactionRecord{out.Record},
	}
	v, err := CrossValidate(txID, data)
	if err != nil {
		return nil, err
	}

	out.Position = v.Position()
	return out, nil
}

// decodeCanonical rejects encodings that decode fine but would not
// re-hash to the same bytes
func decodeCanonical(what string, data []byte, v any) error {
	if len(data) == 0 {
		return NewError(KindInvalidInput, "bundle has no %s", what)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return WrapError(KindInvalidInput, err, "malformed %s", what)
	}

	again, err := codec.Marshal(v)
	if err != nil {
		return WrapError(KindInternal, err, "failed to re-encode %s", what)
	}
	if !bytes.Equal(again, data) {
		return NewError(KindIntegrityMismatch, "%s is not canonically encoded", what)
	}
	return nil
}
