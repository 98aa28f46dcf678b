package util

import (
	"crypto/rand"
	"encoding/hex"
)

const tokenBytes = 32

// GenerateToken mints an ingest credential: 32 random bytes, hex encoded.
func GenerateToken() (string, error) {
	bytes := make([]byte, tokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// MaskCode hides the tail of a pairing code for log output.
func MaskCode(code string) string {
	if len(code) <= 4 {
		return "****"
	}
	return code[:4] + "****"
}
