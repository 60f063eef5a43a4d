// Copyright 2025 Certen Protocol

package opinion

import (
	"crypto/ed25519"
	"testing"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/poex"
)

func TestSuccessfulOpinionSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	executorKey, err := ExecutorKeyFromPublicKey(pub)
	if err != nil {
		t.Fatalf("executor key: %v", err)
	}

	poexState := poex.New(poex.Point{})
	proof := poexState.BuildActualProof()

	op := &SuccessfulEndBatchExecutionOpinion{
		BatchIndex:  1,
		ExecutorKey: executorKey,
		StorageState: calltypes.StorageState{
			UsedDriveSize: 10,
		},
		Proofs: proof,
	}
	op.Sign(priv)

	ok, err := op.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature to verify")
	}

	op.BatchIndex = 2
	ok, err = op.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected tampered opinion to fail verification")
	}
}

func TestUnsuccessfulOpinionSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	executorKey, err := ExecutorKeyFromPublicKey(pub)
	if err != nil {
		t.Fatalf("executor key: %v", err)
	}

	op := &UnsuccessfulEndBatchExecutionOpinion{
		BatchIndex:  5,
		ExecutorKey: executorKey,
		Reason:      FailureReasonStorageOperational,
	}
	op.Sign(priv)

	ok, err := op.Verify(pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature to verify")
	}

	otherPub, _, _ := ed25519.GenerateKey(nil)
	ok, err = op.Verify(otherPub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected verification with wrong key to fail")
	}
}

func TestThresholdConfigRequiredCount(t *testing.T) {
	c := DefaultThresholdConfig()
	cases := []struct {
		total    int
		required int
	}{
		{total: 1, required: 1},
		{total: 3, required: 2},
		{total: 4, required: 3},
		{total: 7, required: 5},
		{total: 10, required: 7},
	}
	for _, tc := range cases {
		got := c.RequiredCount(tc.total)
		if got != tc.required {
			t.Errorf("RequiredCount(%d) = %d, want %d", tc.total, got, tc.required)
		}
		if !c.IsThresholdMet(got, tc.total) {
			t.Errorf("expected threshold met at exactly required count for total=%d", tc.total)
		}
		if got > 1 && c.IsThresholdMet(got-1, tc.total) {
			t.Errorf("expected threshold not met one below required count for total=%d", tc.total)
		}
	}
}
