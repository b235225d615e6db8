package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	return path
}

func TestFileDeterministic(t *testing.T) {
	path := writeFile(t, "a.bin", []byte("the same bytes every time"))

	first, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	second, err := File(path)
	if err != nil {
		t.Fatalf("File failed on second read: %v", err)
	}

	if first != second {
		t.Errorf("fingerprint not deterministic: %q != %q", first, second)
	}
	if len(first) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%q)", len(first), first)
	}
}

func TestFileKnownDigest(t *testing.T) {
	// md5("hello") is a fixed reference value.
	path := writeFile(t, "hello.txt", []byte("hello"))

	got, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if want := "5d41402abc4b2a76b9719d911017c592"; got != want {
		t.Errorf("File = %q, want %q", got, want)
	}
}

func TestFileSingleByteChange(t *testing.T) {
	a := writeFile(t, "a.bin", []byte("identical content A"))
	b := writeFile(t, "b.bin", []byte("identical content B"))

	ha, err := File(a)
	if err != nil {
		t.Fatalf("File(a) failed: %v", err)
	}
	hb, err := File(b)
	if err != nil {
		t.Fatalf("File(b) failed: %v", err)
	}

	if ha == hb {
		t.Error("one-byte change produced the same fingerprint")
	}
}

func TestFileLargerThanChunk(t *testing.T) {
	// Force multiple chunk reads.
	data := make([]byte, chunkSize*3+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	path := writeFile(t, "large.bin", data)

	got, err := File(path)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	if len(got) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(got))
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}
