// Package storage reads and writes zstd-compressed proof bundle files.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tangled.org/atscan.net/lightproof/internal/types"
	"tangled.org/atscan.net/lightproof/proof"
)

// maxBundleSize bounds the decompressed size of a bundle file
const maxBundleSize = 64 << 20

// Operations handles bundle file I/O
type Operations struct {
	logger types.Logger
}

// FileInfo describes a bundle file written by SaveBundle
type FileInfo struct {
	Path           string `json:"path"`
	ContentSize    int64  `json:"content_size"`
	CompressedSize int64  `json:"compressed_size"`
	ContentHash    string `json:"content_hash"`
	CompressedHash string `json:"compressed_hash"`
}

func NewOperations(logger types.Logger) *Operations {
	return &Operations{logger: logger}
}

// ========================================
// STREAMING
// ========================================

// WriteBundle writes the compressed file form of b to w
func WriteBundle(w io.Writer, b *proof.Bundle) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode bundle: %w", err)
	}

	zw := NewStreamingWriter(w)
	defer zw.Release()

	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("failed to compress bundle: %w", err)
	}
	return zw.Close()
}

// ReadBundle reads a compressed bundle from r
func ReadBundle(r io.Reader) (*proof.Bundle, error) {
	zr := NewStreamingReader(r)
	defer zr.Release()

	data, err := io.ReadAll(io.LimitReader(zr, maxBundleSize+1))
	if err != nil {
		return nil, proof.WrapError(proof.KindInvalidInput, err, "failed to decompress bundle")
	}
	if len(data) > maxBundleSize {
		return nil, proof.NewError(proof.KindInvalidInput, "bundle exceeds %d bytes", maxBundleSize)
	}

	return proof.UnmarshalBundle(data)
}

// ========================================
// FILE OPERATIONS
// ========================================

// SaveBundle writes b to path atomically (temp file + rename)
func (op *Operations) SaveBundle(path string, b *proof.Bundle) (*FileInfo, error) {
	data, err := b.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode bundle: %w", err)
	}
	compressed := Compress(data)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return nil, fmt.Errorf("failed to rename file: %w", err)
	}

	info := &FileInfo{
		Path:           path,
		ContentSize:    int64(len(data)),
		CompressedSize: int64(len(compressed)),
		ContentHash:    Hash(data),
		CompressedHash: Hash(compressed),
	}

	if op.logger != nil {
		op.logger.Printf("Saved bundle %s (%d bytes, %d compressed)", path, info.ContentSize, info.CompressedSize)
	}
	return info, nil
}

// LoadBundle reads a bundle file written by SaveBundle
func (op *Operations) LoadBundle(path string) (*proof.Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open bundle: %w", err)
	}
	defer f.Close()

	return ReadBundle(f)
}

// Hash computes the SHA256 checksum of data
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
