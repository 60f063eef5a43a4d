// Copyright 2025 Certen Protocol
//
// External collaborator interfaces. Every boundary the core's single
// logical thread crosses — virtual machine dispatch, drive storage,
// gossip, the chain itself, and the host application's own event sink — is
// expressed here as a plain Go interface, one abstract base (and one test
// mock) per collaborator.

package executor

import (
	"context"

	"github.com/certen/contract-executor/pkg/calltypes"
)

// CallOutcome is what a VirtualMachine reports after attempting a call.
type CallOutcome struct {
	Success      bool
	ResultCode   uint32
	ResultData   []byte
	ModifiedKeys []calltypes.ModificationId
	// ProofOfExecutionSecret is the per-call secret the VM drew while
	// executing this call. It is opaque to the VM's caller: every executor
	// that replays the same call deterministically arrives at the same
	// secret, which is what lets independently-executing peers fold it
	// into their proof-of-execution accumulators and end up with matching
	// Y values for identical executions.
	ProofOfExecutionSecret uint64
}

// VirtualMachine executes a single call request against the sandbox
// opened for a drive modification. Implementations must not retain
// mutable state across calls beyond what the modification itself tracks —
// "the VM" is treated as a globally shared, stateless resource whose only
// scarce property is concurrent availability.
type VirtualMachine interface {
	ExecuteCall(ctx context.Context, driveKey calltypes.DriveKey, modID calltypes.ModificationId, call calltypes.CallRequest) (CallOutcome, error)
}

// StorageModification is an in-flight, not-yet-applied set of writes
// against a drive, opened by Storage.OpenModification.
type StorageModification interface {
	ModificationId() calltypes.ModificationId
	State() calltypes.StorageState
}

// SandboxModification extends StorageModification with the write surface
// a VirtualMachine call uses while it executes: reading and writing files
// inside the sandbox the modification represents.
type SandboxModification interface {
	StorageModification
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
}

// Storage is the drive collaborator: opening, applying and discarding
// modifications, and reporting the drive's currently agreed state.
type Storage interface {
	CurrentState(ctx context.Context, driveKey calltypes.DriveKey) (calltypes.StorageState, error)
	OpenModification(ctx context.Context, driveKey calltypes.DriveKey) (SandboxModification, error)
	ApplyModification(ctx context.Context, mod SandboxModification) (calltypes.StorageState, error)
	DiscardModification(ctx context.Context, mod SandboxModification) error
	// SyncToState forces the local drive to match a chain-agreed state
	// that diverged from the local modification, the "drive-sync-and-
	// reset" reconciliation path.
	SyncToState(ctx context.Context, driveKey calltypes.DriveKey, state calltypes.StorageState) error
}

// GossipMessage is an opaque, already-encoded opinion or proof broadcast
// to the rest of the cohort.
type GossipMessage struct {
	ContractKey calltypes.ContractKey
	Payload     []byte
}

// Messenger is the gossip collaborator opinions travel over.
type Messenger interface {
	Broadcast(ctx context.Context, msg GossipMessage) error
	Subscribe(contractKey calltypes.ContractKey, handler func(GossipMessage)) (unsubscribe func(), err error)
}

// ChainClient is the blockchain collaborator: block delivery and
// end-batch transaction submission.
type ChainClient interface {
	SubscribeBlocks(ctx context.Context, handler func(calltypes.BlockHash, uint64)) (unsubscribe func(), err error)
	SubmitEndBatchTransaction(ctx context.Context, contractKey calltypes.ContractKey, tx EndBatchTransaction) (calltypes.TransactionHash, error)
}

// EndBatchTransaction is the assembled outcome of a completed
// BatchExecutionTask cycle, submitted to the chain for the cohort's
// agreement to become final.
type EndBatchTransaction struct {
	ContractKey calltypes.ContractKey
	BatchIndex  uint64
	// Successful discriminates the two end-batch transaction shapes: true
	// for a successful execution (StorageState is the newly agreed drive
	// state), false for an unsuccessful one (StorageState is unused).
	Successful   bool
	StorageState calltypes.StorageState
	ExecutorKeys []calltypes.ExecutorKey
	Signatures   []calltypes.Signature
}

// ExecutorEventHandler is the host application's event sink, notified of
// externally-visible lifecycle events the core produces.
type ExecutorEventHandler interface {
	OnBatchReady(contractKey calltypes.ContractKey, batchIndex uint64)
	OnEndBatchExecutionSuccessful(contractKey calltypes.ContractKey, batchIndex uint64, state calltypes.StorageState)
	OnEndBatchExecutionFailed(contractKey calltypes.ContractKey, batchIndex uint64, reason string)
}
