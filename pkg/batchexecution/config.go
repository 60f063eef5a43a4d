// Copyright 2025 Certen Protocol

package batchexecution

import (
	"crypto/ed25519"
	"log"
	"os"
	"time"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
	"github.com/certen/contract-executor/pkg/metrics"
	"github.com/certen/contract-executor/pkg/opinion"
	"github.com/certen/contract-executor/pkg/poex"
)

// Config wires a Task to its collaborators and cohort-wide parameters: one
// struct, optional fields defaulted by DefaultConfig.
type Config struct {
	Logger *log.Logger

	// Metrics is optional; a nil Metrics disables instrumentation entirely
	// rather than requiring callers to pass a no-op implementation.
	Metrics *metrics.Metrics

	VM           executor.VirtualMachine
	Storage      executor.Storage
	Messenger    executor.Messenger
	ChainClient  executor.ChainClient
	EventHandler executor.ExecutorEventHandler

	ContractKey calltypes.ContractKey
	DriveKey    calltypes.DriveKey

	SelfExecutorKey calltypes.ExecutorKey
	SigningKey      ed25519.PrivateKey

	// ExecutorKeys is the full cohort, self included, in any order; the
	// task sorts it when assembling transactions.
	ExecutorKeys []calltypes.ExecutorKey

	Threshold *opinion.ThresholdConfig

	// SelfPoex is this executor's own long-lived accumulator (lifetime =
	// contract lifetime, owned by the caller, shared across batches).
	SelfPoex *poex.ProofOfExecution

	// PeerPoex holds one long-lived accumulator per cohort peer, each
	// constructed with that peer's own Bandersnatch public key, used only
	// to reconstruct the challenge-weighted range sum when verifying that
	// peer's opinions (never to derive secrets).
	PeerPoex map[calltypes.ExecutorKey]*poex.ProofOfExecution

	// PeerPoexPublicKey is each peer's Bandersnatch public key, distinct
	// from their ed25519 ExecutorKey (which signs the opinion envelope,
	// not the proof-of-execution curve).
	PeerPoexPublicKey map[calltypes.ExecutorKey]poex.Point

	// PeerExecutorInfo is each peer's last agreed checkpoint, mutated in
	// place as this task verifies that peer's opinion for the current
	// batch; the map itself is owned by the caller and outlives the task.
	PeerExecutorInfo map[calltypes.ExecutorKey]opinion.ExecutorInfo

	ExecutionMultiplier uint64
	DownloadMultiplier  uint64

	ShareOpinionTimeout        time.Duration
	SuccessfulExecutionDelay   time.Duration
	UnsuccessfulExecutionDelay time.Duration
	VMFailureBackoff           time.Duration
	VMMaxRetries               int
}

// DefaultConfig returns sensible timeout/retry defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:                     log.New(os.Stdout, "[BatchExecutionTask] ", log.LstdFlags),
		Threshold:                  opinion.DefaultThresholdConfig(),
		ExecutionMultiplier:        1,
		DownloadMultiplier:         1,
		ShareOpinionTimeout:        2 * time.Second,
		SuccessfulExecutionDelay:   500 * time.Millisecond,
		UnsuccessfulExecutionDelay: 500 * time.Millisecond,
		VMFailureBackoff:           200 * time.Millisecond,
		VMMaxRetries:               3,
	}
}
