package storage_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"tangled.org/atscan.net/lightproof/internal/ledgertest"
	"tangled.org/atscan.net/lightproof/internal/storage"
	"tangled.org/atscan.net/lightproof/proof"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Printf(format string, v ...interface{}) {
	l.t.Logf(format, v...)
}

func (l *testLogger) Println(v ...interface{}) {
	l.t.Log(v...)
}

func testBundle(t *testing.T) *proof.Bundle {
	t.Helper()
	rec := ledgertest.NewRecord("storage")
	data := ledgertest.BuildCheckpoint(3, 11, ledgertest.NewRecord("other"), rec)

	v, err := proof.CrossValidate(ledgertest.TxID(rec), data)
	if err != nil {
		t.Fatalf("CrossValidate failed: %v", err)
	}
	b, err := proof.Assemble(v)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	return b
}

// ====================================================================================
// COMPRESSION TESTS
// ====================================================================================

func TestCompression(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		input := bytes.Repeat([]byte("checkpoint contents "), 500)

		compressed := storage.Compress(input)
		if len(compressed) >= len(input) {
			t.Errorf("expected compression, got %d >= %d", len(compressed), len(input))
		}

		out, err := storage.Decompress(compressed)
		if err != nil {
			t.Fatalf("Decompress failed: %v", err)
		}
		if !bytes.Equal(out, input) {
			t.Error("round trip mismatch")
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := storage.Decompress([]byte("not zstd at all")); err == nil {
			t.Error("expected error for garbage input")
		}
	})
}

// ====================================================================================
// STREAMING TESTS
// ====================================================================================

func TestStreaming(t *testing.T) {
	b := testBundle(t)

	t.Run("RoundTrip", func(t *testing.T) {
		var buf bytes.Buffer
		if err := storage.WriteBundle(&buf, b); err != nil {
			t.Fatalf("WriteBundle failed: %v", err)
		}

		got, err := storage.ReadBundle(&buf)
		if err != nil {
			t.Fatalf("ReadBundle failed: %v", err)
		}
		if !got.Equal(b) {
			t.Error("bundle changed across round trip")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		var a, c bytes.Buffer
		if err := storage.WriteBundle(&a, b); err != nil {
			t.Fatal(err)
		}
		if err := storage.WriteBundle(&c, b); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a.Bytes(), c.Bytes()) {
			t.Error("compressed output differs between writes")
		}
	})

	t.Run("NotABundle", func(t *testing.T) {
		var buf bytes.Buffer
		buf.Write(storage.Compress([]byte("plain text")))

		_, err := storage.ReadBundle(&buf)
		if proof.KindOf(err) != proof.KindInvalidInput {
			t.Errorf("expected InvalidInput, got %v", err)
		}
	})
}

// ====================================================================================
// FILE TESTS
// ====================================================================================

func TestBundleFiles(t *testing.T) {
	tmpDir := t.TempDir()
	ops := storage.NewOperations(&testLogger{t: t})
	b := testBundle(t)

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(tmpDir, "tx.proof.zst")

		info, err := ops.SaveBundle(path, b)
		if err != nil {
			t.Fatalf("SaveBundle failed: %v", err)
		}
		if info.CompressedSize <= 0 || info.ContentSize <= 0 {
			t.Errorf("unexpected sizes: %+v", info)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if storage.Hash(raw) != info.CompressedHash {
			t.Error("compressed hash does not match file contents")
		}

		loaded, err := ops.LoadBundle(path)
		if err != nil {
			t.Fatalf("LoadBundle failed: %v", err)
		}
		if !loaded.Equal(b) {
			t.Error("loaded bundle differs")
		}
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		dir := t.TempDir()
		if _, err := ops.SaveBundle(filepath.Join(dir, "a.proof.zst"), b); err != nil {
			t.Fatal(err)
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("expected exactly one file, got %d", len(entries))
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		path := filepath.Join(tmpDir, "overwrite.proof.zst")
		if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := ops.SaveBundle(path, b); err != nil {
			t.Fatalf("SaveBundle failed: %v", err)
		}
		if _, err := ops.LoadBundle(path); err != nil {
			t.Errorf("LoadBundle after overwrite failed: %v", err)
		}
	})

	t.Run("MissingDirectory", func(t *testing.T) {
		if _, err := ops.SaveBundle(filepath.Join(tmpDir, "nope", "x.proof.zst"), b); err == nil {
			t.Error("expected error for missing directory")
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := ops.LoadBundle(filepath.Join(tmpDir, "missing.proof.zst")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
