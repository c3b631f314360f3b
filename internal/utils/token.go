package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// NewTrackingToken returns 16 random bytes, hex encoded.
func NewTrackingToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
