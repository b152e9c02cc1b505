// Package fileid derives a deterministic id for a watched file so its chunks can be replaced or removed.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// ForPath returns a stable file id for the given absolute path.
// The same path always yields the same id, so re-syncing a file replaces its chunks.
func ForPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:16])
}

// IsWatched reports whether id was produced by ForPath rather than assigned to an upload.
func IsWatched(id string) bool {
	return len(id) > len(prefix) && id[:len(prefix)] == prefix
}
