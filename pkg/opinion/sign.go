// Copyright 2025 Certen Protocol

package opinion

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/certen/contract-executor/pkg/calltypes"
)

// DomainOpinion separates opinion signatures from any other ed25519 use in
// the system, the way pkg/attestation's strategies prefix every signed
// message with a fixed domain string.
const DomainOpinion = "CERTEN_EXECUTOR_OPINION_V1"

func domainMessage(payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(DomainOpinion)
	buf.Write(payload)
	return buf.Bytes()
}

// Sign computes and attaches a signature to a successful opinion using the
// executor's ed25519 private key. The private key's public half must match
// o.ExecutorKey, or the resulting opinion will fail verification by peers.
func (o *SuccessfulEndBatchExecutionOpinion) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, domainMessage(o.signingPayload()))
	copy(o.Signature[:], sig)
}

// Verify checks the opinion's signature against the given public key.
func (o *SuccessfulEndBatchExecutionOpinion) Verify(pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	return ed25519.Verify(pub, domainMessage(o.signingPayload()), o.Signature[:]), nil
}

// Sign computes and attaches a signature to an unsuccessful opinion.
func (o *UnsuccessfulEndBatchExecutionOpinion) Sign(priv ed25519.PrivateKey) {
	sig := ed25519.Sign(priv, domainMessage(o.signingPayload()))
	copy(o.Signature[:], sig)
}

// Verify checks the opinion's signature against the given public key.
func (o *UnsuccessfulEndBatchExecutionOpinion) Verify(pub ed25519.PublicKey) (bool, error) {
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	return ed25519.Verify(pub, domainMessage(o.signingPayload()), o.Signature[:]), nil
}

// ExecutorKeyFromPublicKey derives the calltypes.ExecutorKey this opinion
// package expects callers to populate from an ed25519 public key.
func ExecutorKeyFromPublicKey(pub ed25519.PublicKey) (calltypes.ExecutorKey, error) {
	var k calltypes.ExecutorKey
	if len(pub) != ed25519.PublicKeySize {
		return k, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	copy(k[:], pub)
	return k, nil
}
