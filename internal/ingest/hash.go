package ingest

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes returns the hex sha256 of content. Hashing always runs over
// the plaintext so the server can spot duplicates even when the payload
// itself goes up encrypted.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
