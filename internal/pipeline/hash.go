package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// contentHash computes the stage-4 change-detection key: SHA-256 over the
// UTF-8 bytes of text after line-ending normalization.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(normalizeLineEndings(text)))
	return hex.EncodeToString(sum[:])
}

// normalizeLineEndings maps "\r\n" and lone "\r" to "\n" so the same
// logical text hashes identically regardless of how it was read from disk.
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text
}
