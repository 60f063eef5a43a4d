// Copyright 2025 Certen Protocol
//
// Groth16 trusted-setup CLI for BatchProofCircuit.
// Generates a constraint system and proving/verification key pair and
// writes them to disk for pkg/poex/circuit.Prover.LoadKeys to read back,
// avoiding a fresh (non-reproducible) Setup on every run. cmd/contract-executor
// does not load them.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/certen/contract-executor/pkg/poex/circuit"
)

func main() {
	csPath := flag.String("cs", "poex_circuit.cs", "output path for the compiled constraint system")
	pkPath := flag.String("pk", "poex_proving.key", "output path for the proving key")
	vkPath := flag.String("vk", "poex_verifying.key", "output path for the verification key")
	flag.Parse()

	prover := circuit.NewProver()

	log.Printf("🔧 Compiling BatchProofCircuit and running Groth16 setup...")
	if err := prover.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Printf("💾 Writing constraint system to %s", *csPath)
	log.Printf("💾 Writing proving key to %s", *pkPath)
	log.Printf("💾 Writing verification key to %s", *vkPath)
	if err := prover.SaveKeys(*csPath, *pkPath, *vkPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Printf("✅ Setup complete")
}
