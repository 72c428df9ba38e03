package storage

import (
	"fmt"
	"io"

	"github.com/valyala/gozstd"
)

// CompressionLevel is the level used for bundle files and HTTP bodies
const CompressionLevel = 3

// Compress compresses data into a single zstd frame
func Compress(data []byte) []byte {
	return gozstd.CompressLevel(nil, data, CompressionLevel)
}

// Decompress decompresses every frame in compressed
func Decompress(compressed []byte) ([]byte, error) {
	decompressed, err := gozstd.Decompress(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}
	return decompressed, nil
}

// StreamReader decompresses a zstd stream; Release returns its native
// resources and must always be called.
type StreamReader interface {
	io.Reader
	Release()
}

// StreamWriter compresses into a zstd stream. Close flushes the final
// frame; Release must be called after it.
type StreamWriter interface {
	io.WriteCloser
	Release()
}

// NewStreamingReader wraps r in a streaming decompressor
func NewStreamingReader(r io.Reader) StreamReader {
	return gozstd.NewReader(r)
}

// NewStreamingWriter wraps w in a streaming compressor at CompressionLevel
func NewStreamingWriter(w io.Writer) StreamWriter {
	return gozstd.NewWriterLevel(w, CompressionLevel)
}
