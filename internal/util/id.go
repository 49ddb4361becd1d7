// Package util holds small helpers with no home in a domain package.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 128-bit identifier, optionally tagged with a type
// prefix ("doc_...", "op_...", "jti_..."). The prefix keeps document,
// operator, and token IDs tellable apart in logs and error payloads.
func NewID(prefix string) string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	if prefix == "" {
		return hex.EncodeToString(buf)
	}
	return prefix + "_" + hex.EncodeToString(buf)
}
