package workflow

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultCodeLength is used when the configured length is not positive.
const DefaultCodeLength = 4

var ten = big.NewInt(10)

// GenerateCode produces a numeric secret code of the given length. The
// code is a bearer secret for finalizing irreversible actions, so every
// digit comes from the crypto-grade source, sampled uniformly.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate confirmation code: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
