package crypto

import (
	"crypto/rand"
	"encoding/base64"
)

// NewSecretKey returns a fresh 256-bit key for signing access tokens,
// encoded so it can live in an environment variable.
func NewSecretKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
