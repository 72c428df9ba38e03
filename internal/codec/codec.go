// Package codec holds the canonical byte encoding used for everything a
// light client re-hashes: checkpoint summaries, contents, transaction
// records and proof bundles.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"tangled.org/atscan.net/lightproof/internal/types"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// logical value always produces identical bytes.
var encMode cbor.EncMode

// decMode rejects duplicate map keys so two different byte strings can
// never decode to the same value.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v canonically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes canonical bytes into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value.
type RawMessage = cbor.RawMessage

// Hash returns blake2b-256(tag || "::" || data).
func Hash(tag string, data []byte) types.Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with an oversized key
		panic("codec: blake2b init: " + err.Error())
	}
	h.Write([]byte(tag))
	h.Write([]byte("::"))
	h.Write(data)

	var d types.Digest
	copy(d[:], h.Sum(nil))
	return d
}

// HashValue canonically encodes v and hashes it under tag.
func HashValue(tag string, v any) (types.Digest, error) {
	data, err := Marshal(v)
	if err != nil {
		return types.Digest{}, fmt.Errorf("failed to encode %s: %w", tag, err)
	}
	return Hash(tag, data), nil
}

// Diagnose returns CBOR diagnostic notation for data; used by `inspect`.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
