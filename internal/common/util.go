package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the result is 2*size characters long.
func MakeRandHexString(size int) (string, error) {
	b, err := GenerateRandByteArray(size)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GenerateRandByteArray returns size bytes from the system CSPRNG.
// Failures are reported as ErrCryptoFailure.
func GenerateRandByteArray(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
