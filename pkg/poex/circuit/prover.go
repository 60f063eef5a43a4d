// Copyright 2025 Certen Protocol
//
// Groth16 prover/verifier wrapper for BatchProofCircuit, mirroring the
// setup/save/load shape of pkg/crypto/bls_zkp's BLSZKProver.

package circuit

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// curveField is the SNARK's own scalar field, independent of the
// Bandersnatch curve the accumulator itself runs on.
var curveField = ecc.BLS12_381.ScalarField()

// Prover compiles BatchProofCircuit once and reuses the resulting proving
// and verification keys for every batch checkpoint proved afterward.
type Prover struct {
	mu sync.RWMutex

	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
	vk groth16.VerifyingKey

	initialized bool
}

func NewProver() *Prover {
	return &Prover{}
}

// Setup runs the (insecure, development-only) trusted setup for
// BatchProofCircuit. Production deployments should load keys produced by a
// proper multi-party ceremony via LoadKeys instead.
func (p *Prover) Setup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	var circuit BatchProofCircuit
	cs, err := frontend.Compile(curveField, r1cs.NewBuilder, &circuit)
	if err != nil {
		return fmt.Errorf("compile batch proof circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(cs)
	if err != nil {
		return fmt.Errorf("groth16 setup: %w", err)
	}
	p.cs, p.pk, p.vk = cs, pk, vk
	p.initialized = true
	return nil
}

// LoadKeys loads a previously generated constraint system and key pair from
// disk, the way BLSZKProver.InitializeFromKeys does.
func (p *Prover) LoadKeys(csPath, pkPath, vkPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	csFile, err := os.Open(csPath)
	if err != nil {
		return fmt.Errorf("open constraint system: %w", err)
	}
	defer csFile.Close()
	p.cs = groth16.NewCS(ecc.BLS12_381)
	if _, err := p.cs.ReadFrom(csFile); err != nil {
		return fmt.Errorf("read constraint system: %w", err)
	}

	pkFile, err := os.Open(pkPath)
	if err != nil {
		return fmt.Errorf("open proving key: %w", err)
	}
	defer pkFile.Close()
	p.pk = groth16.NewProvingKey(ecc.BLS12_381)
	if _, err := p.pk.ReadFrom(pkFile); err != nil {
		return fmt.Errorf("read proving key: %w", err)
	}

	vkFile, err := os.Open(vkPath)
	if err != nil {
		return fmt.Errorf("open verification key: %w", err)
	}
	defer vkFile.Close()
	p.vk = groth16.NewVerifyingKey(ecc.BLS12_381)
	if _, err := p.vk.ReadFrom(vkFile); err != nil {
		return fmt.Errorf("read verification key: %w", err)
	}

	p.initialized = true
	return nil
}

// SaveKeys persists the constraint system and key pair for later reuse via
// LoadKeys, avoiding a fresh (and non-reproducible) Setup on every restart.
func (p *Prover) SaveKeys(csPath, pkPath, vkPath string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return errors.New("circuit: prover not initialized")
	}

	csFile, err := os.Create(csPath)
	if err != nil {
		return fmt.Errorf("create constraint system file: %w", err)
	}
	defer csFile.Close()
	if _, err := p.cs.WriteTo(csFile); err != nil {
		return fmt.Errorf("write constraint system: %w", err)
	}

	pkFile, err := os.Create(pkPath)
	if err != nil {
		return fmt.Errorf("create proving key file: %w", err)
	}
	defer pkFile.Close()
	if _, err := p.pk.WriteTo(pkFile); err != nil {
		return fmt.Errorf("write proving key: %w", err)
	}

	vkFile, err := os.Create(vkPath)
	if err != nil {
		return fmt.Errorf("create verification key file: %w", err)
	}
	defer vkFile.Close()
	if _, err := p.vk.WriteTo(vkFile); err != nil {
		return fmt.Errorf("write verification key: %w", err)
	}
	return nil
}

// Prove generates a Groth16 proof for the given assignment.
func (p *Prover) Prove(assignment *BatchProofCircuit) (groth16.Proof, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return nil, errors.New("circuit: prover not initialized")
	}

	witness, err := frontend.NewWitness(assignment, curveField)
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}
	proof, err := groth16.Prove(p.cs, p.pk, witness)
	if err != nil {
		return nil, fmt.Errorf("generate proof: %w", err)
	}
	return proof, nil
}

// Verify checks a Groth16 proof against the circuit's public inputs.
func (p *Prover) Verify(proof groth16.Proof, publicAssignment *BatchProofCircuit) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.initialized {
		return false, errors.New("circuit: prover not initialized")
	}

	publicWitness, err := frontend.NewWitness(publicAssignment, curveField, frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("create public witness: %w", err)
	}
	if err := groth16.Verify(proof, p.vk, publicWitness); err != nil {
		return false, nil
	}
	return true, nil
}
