package auth

import (
	"crypto/rand"
	"encoding/base64"
)

const defaultRandomBytes = 32

// GenerateRandString returns n random bytes encoded as unpadded base64url.
func GenerateRandString(n int) string {
	if n <= 0 {
		n = defaultRandomBytes
	}

	b := make([]byte, n)
	_, _ = rand.Read(b)

	return base64.RawURLEncoding.EncodeToString(b)
}
