// Package fileid derives stable media IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "media:"

// FileDocID returns a stable ID for the media file at absolutePath: "media:"
// followed by the first 16 bytes of the SHA-256 of the cleaned path, in hex.
// Re-registering the same path yields the same ID even though it gets a new index.
func FileDocID(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return prefix + hex.EncodeToString(hash[:16])
}
