package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// JobIDFor derives the stable job identifier from a source handle. Repeated
// submissions and status queries for the same handle hash to the same
// record. The handle is normalized (surrounding whitespace and a leading
// slash stripped) so trivially different spellings still converge.
func JobIDFor(sourceHandle string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(sourceHandle), "/")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:32]
}
