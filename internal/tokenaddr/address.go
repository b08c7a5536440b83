// Package tokenaddr validates external chain addresses linked to accounts.
package tokenaddr

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// addressLen is the raw byte length of a chain address (an ed25519 public key).
const addressLen = 32

// Validate checks that addr is a well-formed chain address: base58 text
// decoding to 32 bytes that form a valid ed25519 curve point.
func Validate(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}

	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != addressLen {
		return fmt.Errorf("address length %d, want %d", len(decoded), addressLen)
	}
	if !isOnCurve(decoded) {
		return fmt.Errorf("address is not a valid curve point")
	}
	return nil
}

// Normalize re-encodes addr through its byte representation, rejecting
// malformed input. The canonical form is what gets persisted.
func Normalize(addr string) (string, error) {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return "", fmt.Errorf("decode address: %w", err)
	}
	if len(decoded) != addressLen {
		return "", fmt.Errorf("address length %d, want %d", len(decoded), addressLen)
	}
	return base58.Encode(decoded), nil
}

func isOnCurve(point []byte) bool {
	if len(point) != addressLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
