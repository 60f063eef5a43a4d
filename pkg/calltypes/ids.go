// Copyright 2025 Certen Protocol
//
// Identifier types for the contract-executor core.
// All identifiers are 32-byte public-key-shaped opaque byte arrays, the way
// the chain itself treats accounts, drives and transactions.

package calltypes

import (
	"encoding/hex"
	"fmt"
)

// KeySize is the fixed width of every identifier in this package.
const KeySize = 32

// SignatureSize is the fixed width of an executor signature.
const SignatureSize = 64

// ContractKey identifies a contract (one BatchesManager/BatchExecutionTask
// pipeline exists per ContractKey).
type ContractKey [KeySize]byte

// DriveKey identifies the content-addressed drive backing a contract.
type DriveKey [KeySize]byte

// ExecutorKey identifies a cohort member; opinions and proofs are bound to
// this key.
type ExecutorKey [KeySize]byte

// CallerKey identifies the account that submitted a manual call. Zero for
// automatic calls.
type CallerKey [KeySize]byte

// CallId uniquely identifies a call request across the contract's history.
type CallId [KeySize]byte

// ModificationId identifies a storage transaction opened against a drive.
type ModificationId [KeySize]byte

// StorageHash identifies a drive snapshot.
type StorageHash [KeySize]byte

// TransactionHash identifies a published blockchain transaction.
type TransactionHash [KeySize]byte

// BlockHash identifies a block on the chain.
type BlockHash [KeySize]byte

// Signature is a 64-byte executor signature over an opinion or transaction.
type Signature [SignatureSize]byte

func (k ContractKey) String() string      { return hex.EncodeToString(k[:]) }
func (k DriveKey) String() string         { return hex.EncodeToString(k[:]) }
func (k ExecutorKey) String() string      { return hex.EncodeToString(k[:]) }
func (k CallerKey) String() string        { return hex.EncodeToString(k[:]) }
func (k CallId) String() string           { return hex.EncodeToString(k[:]) }
func (k ModificationId) String() string   { return hex.EncodeToString(k[:]) }
func (k StorageHash) String() string      { return hex.EncodeToString(k[:]) }
func (k TransactionHash) String() string  { return hex.EncodeToString(k[:]) }
func (k BlockHash) String() string        { return hex.EncodeToString(k[:]) }

// IsZero reports whether the caller key is the all-zero value, the
// convention used by automatic calls for caller_key.
func (k CallerKey) IsZero() bool {
	return k == CallerKey{}
}

// ParseKey decodes a hex-encoded 32-byte identifier.
func ParseKey(s string) ([KeySize]byte, error) {
	var out [KeySize]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decode key %q: %w", s, err)
	}
	if len(b) != KeySize {
		return out, fmt.Errorf("key %q: expected %d bytes, got %d", s, KeySize, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// MosaicAmount is a (mosaic_id, amount) pair attached to a call as a
// service payment.
type MosaicAmount struct {
	MosaicId uint64
	Amount   uint64
}
