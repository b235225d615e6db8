// Package fingerprint computes content fingerprints used as deduplication keys.
//
// The fingerprint is an MD5 hex digest of the file bytes. MD5 is fine here:
// the hash is a dedup key for identical content, not a security boundary.
package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds how much of the file is held in memory while hashing.
const chunkSize = 8192

// File returns the hex-encoded MD5 digest of the file at path.
// The file is streamed in fixed-size chunks, so arbitrarily large files
// hash in constant memory. Identical bytes always produce identical
// fingerprints.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
