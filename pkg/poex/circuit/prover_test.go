// Copyright 2025 Certen Protocol

package circuit

import "testing"

func TestProverSetupProveVerifyRoundTrip(t *testing.T) {
	p := NewProver()
	if err := p.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	assignment := &BatchProofCircuit{
		CheckpointTX: 10,
		CheckpointTY: 20,
		ActualTX:     10 + 7*5 + 3,
		ActualTY:     20,
		RangeSumCX:   3,
		RangeSumCY:   0,
		DeltaR:       5,
		DeltaRBetaX:  7 * 5,
		DeltaRBetaY:  0,
	}

	proof, err := p.Prove(assignment)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	public := &BatchProofCircuit{
		CheckpointTX: assignment.CheckpointTX,
		CheckpointTY: assignment.CheckpointTY,
		ActualTX:     assignment.ActualTX,
		ActualTY:     assignment.ActualTY,
		RangeSumCX:   assignment.RangeSumCX,
		RangeSumCY:   assignment.RangeSumCY,
	}

	ok, err := p.Verify(proof, public)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected proof to verify")
	}
}

func TestProverRejectsWrongWitness(t *testing.T) {
	p := NewProver()
	if err := p.Setup(); err != nil {
		t.Fatalf("setup: %v", err)
	}

	assignment := &BatchProofCircuit{
		CheckpointTX: 1,
		CheckpointTY: 1,
		ActualTX:     1 + 7*2,
		ActualTY:     1,
		RangeSumCX:   0,
		RangeSumCY:   0,
		DeltaR:       2,
		DeltaRBetaX:  7 * 2,
		DeltaRBetaY:  0,
	}
	if _, err := p.Prove(assignment); err != nil {
		t.Fatalf("prove: %v", err)
	}

	badAssignment := &BatchProofCircuit{
		CheckpointTX: 1,
		CheckpointTY: 1,
		ActualTX:     999,
		ActualTY:     1,
		RangeSumCX:   0,
		RangeSumCY:   0,
		DeltaR:       2,
		DeltaRBetaX:  7 * 2,
		DeltaRBetaY:  0,
	}
	if _, err := p.Prove(badAssignment); err == nil {
		t.Fatalf("expected proving an inconsistent witness to fail constraint satisfaction")
	}
}
