// Package digest computes the short content fingerprints recorded in lock
// files. A fingerprint is only ever compared for equality; it is never used
// to recover content.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the length in hex characters of every fingerprint.
const Size = 16

// Content returns the fingerprint of data: the first eight bytes of its
// BLAKE3 digest, hex encoded.
func Content(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:Size/2])
}

// File fingerprints the file at path. It returns ("", false, nil) when the
// file does not exist.
func File(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Content(data), true, nil
}
