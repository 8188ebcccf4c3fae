package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintBytes is the prefix window the digest covers. Truncating keeps
// the fingerprint stable when very large documents grow trailing content.
const fingerprintBytes = 12000

// Fingerprint returns the SHA-256 hex digest over the first 12000 bytes of
// the normalized content.
func Fingerprint(content string) string {
	if len(content) > fingerprintBytes {
		content = content[:fingerprintBytes]
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
