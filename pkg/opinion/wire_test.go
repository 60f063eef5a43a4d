// Copyright 2025 Certen Protocol

package opinion

import (
	"crypto/ed25519"
	"testing"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/poex"
)

func TestSuccessfulOpinionWireRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	executorKey, err := ExecutorKeyFromPublicKey(pub)
	if err != nil {
		t.Fatalf("executor key: %v", err)
	}

	poexState := poex.New(poex.Point{})
	y, err := poexState.AddToProof(42)
	if err != nil {
		t.Fatalf("AddToProof: %v", err)
	}
	proof := poexState.BuildActualProof()

	op := &SuccessfulEndBatchExecutionOpinion{
		BatchIndex:   3,
		ExecutorKey:  executorKey,
		StorageState: calltypes.StorageState{UsedDriveSize: 7},
		Proofs:       proof,
		VerificationInfo: poex.VerificationInfo{
			BatchIndex: 3,
			Ys:         []poex.Point{y},
		},
	}
	op.Sign(priv)

	decoded, err := DecodeSuccessfulOpinion(op.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ok, err := decoded.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected decoded opinion to verify")
	}
	if decoded.BatchIndex != op.BatchIndex {
		t.Errorf("batch index mismatch: got %d want %d", decoded.BatchIndex, op.BatchIndex)
	}
	if !decoded.Proofs.Equal(op.Proofs) {
		t.Errorf("proofs mismatch after round trip")
	}
}

func TestUnsuccessfulOpinionWireRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	executorKey, err := ExecutorKeyFromPublicKey(pub)
	if err != nil {
		t.Fatalf("executor key: %v", err)
	}

	op := &UnsuccessfulEndBatchExecutionOpinion{
		BatchIndex:  9,
		ExecutorKey: executorKey,
		Reason:      FailureReasonVirtualMachineFatal,
	}
	op.Sign(priv)

	kind, err := DecodeOpinionKind(op.Encode())
	if err != nil {
		t.Fatalf("peek kind: %v", err)
	}
	if kind != KindUnsuccessful {
		t.Fatalf("expected KindUnsuccessful, got %v", kind)
	}

	decoded, err := DecodeUnsuccessfulOpinion(op.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ok, err := decoded.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected decoded opinion to verify")
	}
	if decoded.Reason != op.Reason {
		t.Errorf("reason mismatch: got %v want %v", decoded.Reason, op.Reason)
	}
}
