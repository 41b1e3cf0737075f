package auth

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a short stable identifier for a token, safe to log.
// The empty token has the empty fingerprint.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(token))
}
