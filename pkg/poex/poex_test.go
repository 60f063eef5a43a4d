// Copyright 2025 Certen Protocol

package poex

import (
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// testSecrets hands out distinct per-call secrets, standing in for the VM's
// proof_of_execution_secret_data in tests that don't care what the secret
// actually is, only that it is supplied by the caller rather than drawn by
// the accumulator itself.
var testSecretCounter uint64

func nextTestSecret() uint64 {
	return atomic.AddUint64(&testSecretCounter, 1)
}

func testPubKey(t *testing.T) Point {
	t.Helper()
	var s fr.Element
	if _, err := s.SetRandom(); err != nil {
		t.Fatalf("draw key scalar: %v", err)
	}
	var pk Point
	pk.ScalarMultiplication(&curve.Base, s.BigInt(new(big.Int)))
	return pk
}

func addN(t *testing.T, p *ProofOfExecution, n int) []Point {
	t.Helper()
	ys := make([]Point, n)
	for i := 0; i < n; i++ {
		y, err := p.AddToProof(nextTestSecret())
		if err != nil {
			t.Fatalf("add to proof: %v", err)
		}
		ys[i] = y
	}
	return ys
}

func sumChallenges(ys []Point, pk Point) Point {
	var acc Point
	acc = accumulateChallengeSum(acc, VerificationInfo{Ys: ys}, pk)
	return acc
}

func TestProofOfExecutionBatchVerification(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	m := p.BuildActualProof()
	ys1 := addN(t, p, 3)
	m2 := p.BuildActualProof()
	ys2 := addN(t, p, 3)
	n := p.BuildActualProof()

	cY1 := sumChallenges(ys1, pk)
	cY2 := sumChallenges(ys2, pk)
	var cYBoth Point
	cYBoth.Add(&cY1, &cY2)

	if !BatchProofVerification(n, m, cYBoth) {
		t.Fatalf("expected n vs m to verify with combined cY")
	}
	if !BatchProofVerification(n, m2, cY2) {
		t.Fatalf("expected n vs m2 to verify with cY2")
	}
}

func TestProofOfExecutionWrongBatch(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	m := p.BuildActualProof()
	ys1 := addN(t, p, 3)
	m2 := p.BuildActualProof()
	_ = addN(t, p, 3)
	n := p.BuildActualProof()

	wrongCY := sumChallenges(ys1, pk)

	if BatchProofVerification(n, m2, wrongCY) {
		t.Fatalf("expected n vs m2 to fail verification with mismatched cY")
	}
	if BatchProofVerification(n, m, Point{}) {
		t.Fatalf("expected n vs m to fail verification with empty cY")
	}
}

func TestProofOfExecutionPopRestoresState(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	m := p.BuildActualProof()
	_ = addN(t, p, 3)
	m2 := p.BuildActualProof()

	if _, err := p.AddToProof(nextTestSecret()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := p.PopFromProof(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	n := p.BuildActualProof()

	if !BatchProofVerification(n, m2, Point{}) {
		t.Fatalf("expected pop to restore m2's checkpoint exactly")
	}
	if !n.Equal(m2) {
		t.Fatalf("expected accumulator state to equal m2 after pop, got T=%v R=%v", n.T, n.R)
	}
	_ = m
}

func TestProofOfExecutionWithoutPopFailsVerification(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	_ = addN(t, p, 3)
	m2 := p.BuildActualProof()

	if _, err := p.AddToProof(nextTestSecret()); err != nil {
		t.Fatalf("add: %v", err)
	}
	n := p.BuildActualProof()

	if BatchProofVerification(n, m2, Point{}) {
		t.Fatalf("expected unpoped extra call to break verification against empty cY")
	}
}

func TestProofOfExecutionResetPlusEmptyCYVerifies(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	m := p.BuildActualProof()
	_ = addN(t, p, 3)

	p.Reset(10)
	n := p.BuildActualProof()

	if !BatchProofVerification(n, m, Point{}) {
		t.Fatalf("expected post-reset proof to verify against any earlier checkpoint with empty cY")
	}
}

func TestProofOfExecutionWithoutResetFailsVerification(t *testing.T) {
	pk := testPubKey(t)
	p := New(pk)

	m := p.BuildActualProof()
	_ = addN(t, p, 3)
	n := p.BuildActualProof()

	if BatchProofVerification(n, m, Point{}) {
		t.Fatalf("expected un-reset accumulator to fail verification against empty cY")
	}
}

func TestVerifyProofAcrossMultipleBatches(t *testing.T) {
	pk := testPubKey(t)
	prover := New(pk)

	checkpoint := prover.BuildActualProof()

	ysBatch1 := addN(t, prover, 2)
	prover.AdvanceCheckpoint()
	afterBatch1 := prover.BuildActualProof()

	ysBatch2 := addN(t, prover, 1)
	afterBatch2 := prover.BuildActualProof()

	verifier := New(pk)
	verifier.AddBatchVerificationInformation(VerificationInfo{BatchIndex: 1, Ys: ysBatch1})

	ok, err := verifier.VerifyProof(pk, checkpoint, 1, afterBatch1, 2, VerificationInfo{})
	if err != nil {
		t.Fatalf("verify batch 1: %v", err)
	}
	if !ok {
		t.Fatalf("expected batch 1 checkpoint to verify")
	}

	ok, err = verifier.VerifyProof(pk, checkpoint, 1, afterBatch2, 2, VerificationInfo{BatchIndex: 2, Ys: ysBatch2})
	if err != nil {
		t.Fatalf("verify batch 2: %v", err)
	}
	if !ok {
		t.Fatalf("expected batch 2 checkpoint to verify with explicit latest info")
	}
}

func TestVerifyProofRejectsWrongProof(t *testing.T) {
	pk := testPubKey(t)
	prover := New(pk)
	checkpoint := prover.BuildActualProof()
	ys := addN(t, prover, 2)
	afterBatch := prover.BuildActualProof()

	verifier := New(pk)
	verifier.AddBatchVerificationInformation(VerificationInfo{BatchIndex: 1, Ys: ys})

	ok, err := verifier.VerifyProof(pk, checkpoint, 1, Proofs{T: afterBatch.T}, 2, VerificationInfo{})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatalf("expected proof with zeroed R to fail verification")
	}
}

func TestVerifyProofMissingInfoErrors(t *testing.T) {
	pk := testPubKey(t)
	prover := New(pk)
	checkpoint := prover.BuildActualProof()
	_ = addN(t, prover, 2)
	afterBatch := prover.BuildActualProof()

	verifier := New(pk)
	_, err := verifier.VerifyProof(pk, checkpoint, 1, afterBatch, 2, VerificationInfo{})
	if err == nil {
		t.Fatalf("expected missing verification info error")
	}
}
