// Copyright 2025 Certen Protocol

package poex

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// PublicKey derives the accumulator public key for a secret scalar, the
// same secret*base multiplication New's caller must have performed to
// produce the pubKey argument it expects.
func PublicKey(secret fr.Element) Point {
	var pk Point
	pk.ScalarMultiplication(&curve.Base, secret.BigInt(new(big.Int)))
	return pk
}

// MarshalHex encodes a point as hex(X) || hex(Y), the wire form used by
// ContractConfig to record a cohort member's accumulator public key.
func MarshalHex(p Point) string {
	x := p.X.Marshal()
	y := p.Y.Marshal()
	return hex.EncodeToString(x) + hex.EncodeToString(y)
}

// ParsePointHex decodes a point previously encoded by MarshalHex.
func ParsePointHex(s string) (Point, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("poex: decode point hex: %w", err)
	}
	if len(raw)%2 != 0 {
		return Point{}, fmt.Errorf("poex: point hex has odd byte length %d", len(raw))
	}
	half := len(raw) / 2
	var p Point
	p.X.SetBytes(raw[:half])
	p.Y.SetBytes(raw[half:])
	return p, nil
}

// MarshalSecretHex encodes a secret accumulator scalar for storage on disk,
// the PoEx counterpart of an ed25519 key file.
func MarshalSecretHex(secret fr.Element) string {
	return hex.EncodeToString(secret.Marshal())
}

// ParseSecretHex decodes a secret scalar previously encoded by
// MarshalSecretHex.
func ParseSecretHex(s string) (fr.Element, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return fr.Element{}, fmt.Errorf("poex: decode secret hex: %w", err)
	}
	var secret fr.Element
	secret.SetBytes(raw)
	return secret, nil
}
