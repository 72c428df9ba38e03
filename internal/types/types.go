package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Logger is a simple logging interface used throughout lightproof
type Logger interface {
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

const (
	// DIGEST_LENGTH is the size of every ledger digest in bytes
	DIGEST_LENGTH = 32

	// BUNDLE_VERSION is the current proof bundle file format version
	BUNDLE_VERSION = 1

	// BUNDLE_FILE_EXT is the default extension for compressed bundle files
	BUNDLE_FILE_EXT = ".proof.zst"
)

// Digest is a fixed-length ledger digest (transaction, effects, contents...).
// Its text form is base58.
type Digest [DIGEST_LENGTH]byte

// ParseDigest decodes a base58 digest string
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if s == "" {
		return d, fmt.Errorf("digest cannot be empty")
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return d, fmt.Errorf("invalid base58 digest %q: %w", s, err)
	}
	if len(raw) != DIGEST_LENGTH {
		return d, fmt.Errorf("invalid digest length: got %d bytes, want %d", len(raw), DIGEST_LENGTH)
	}

	copy(d[:], raw)
	return d, nil
}

// MustParseDigest is like ParseDigest but panics on error. Intended for
// tests and constants.
func MustParseDigest(s string) Digest {
	d, err := ParseDigest(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DigestFromBytes copies b into a Digest
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DIGEST_LENGTH {
		return d, fmt.Errorf("invalid digest length: got %d bytes, want %d", len(b), DIGEST_LENGTH)
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return base58.Encode(d[:])
}

// Bytes returns a copy of the raw digest bytes
func (d Digest) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

// Short returns an abbreviated form for log lines
func (d Digest) Short() string {
	s := d.String()
	if len(s) > 10 {
		return s[:10] + "…"
	}
	return s
}

// IsZero reports whether d is the all-zero digest
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// MarshalText implements encoding.TextMarshaler
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
