// Copyright 2025 Certen Protocol

package opinion

import "errors"

var (
	// ErrInvalidPublicKey marks a public key of the wrong size for ed25519.
	ErrInvalidPublicKey = errors.New("opinion: invalid ed25519 public key")
)
