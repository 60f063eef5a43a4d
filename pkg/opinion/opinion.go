// Copyright 2025 Certen Protocol
//
// Opinions are the gossiped, signed statements executors exchange during
// the SHARE_OPINIONS phase of BatchExecutionTask. Each cohort member
// publishes exactly one opinion per batch, either claiming a successful
// execution (carrying the resulting storage state and proof-of-execution
// checkpoint) or reporting that execution failed.

package opinion

import (
	"fmt"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/poex"
)

// Kind discriminates the two opinion shapes: successful and unsuccessful.
type Kind uint8

const (
	KindSuccessful Kind = iota
	KindUnsuccessful
)

// ExecutorInfo is a cohort member's last agreed checkpoint: the batch index
// it was built from, the proof-of-execution state at that point, and the
// next batch index whose opinion still needs independent verification.
type ExecutorInfo struct {
	InitialBatch       uint64
	BatchProof         poex.Proofs
	NextBatchToApprove uint64
}

// SuccessfulEndBatchExecutionOpinion is published when an executor's local
// run of a batch's calls produced a storage state it believes the cohort
// will agree on.
type SuccessfulEndBatchExecutionOpinion struct {
	BatchIndex       uint64
	ExecutorKey      calltypes.ExecutorKey
	StorageState     calltypes.StorageState
	Proofs           poex.Proofs
	VerificationInfo poex.VerificationInfo
	Signature        calltypes.Signature
}

// UnsuccessfulEndBatchExecutionOpinion is published when an executor's
// local run of a batch's calls failed (VM rejection, storage failure that
// could not be retried, or an invariant the executor itself detected).
type UnsuccessfulEndBatchExecutionOpinion struct {
	BatchIndex  uint64
	ExecutorKey calltypes.ExecutorKey
	Reason      FailureReason
	Signature   calltypes.Signature
}

// FailureReason classifies why an executor is reporting a batch as failed.
type FailureReason uint8

const (
	FailureReasonUnspecified FailureReason = iota
	FailureReasonStorageOperational
	FailureReasonVirtualMachineFatal
	FailureReasonInvariantViolation
)

func (r FailureReason) String() string {
	switch r {
	case FailureReasonUnspecified:
		return "unspecified"
	case FailureReasonStorageOperational:
		return "storage_operational"
	case FailureReasonVirtualMachineFatal:
		return "virtual_machine_fatal"
	case FailureReasonInvariantViolation:
		return "invariant_violation"
	default:
		return fmt.Sprintf("FailureReason(%d)", uint8(r))
	}
}

// signingPayload returns the bytes a signature is computed over: every
// field except the signature itself, in the deterministic wire order.
func (o *SuccessfulEndBatchExecutionOpinion) signingPayload() []byte {
	e := calltypes.NewEncoder(128)
	e.PutUint8(uint8(KindSuccessful))
	e.PutUint64(o.BatchIndex)
	e.PutFixed(o.ExecutorKey[:])
	e.PutFixed(o.StorageState.Encode())
	e.PutFixed(encodeProofs(o.Proofs))
	e.PutFixed(encodeVerificationInfo(o.VerificationInfo))
	return e.Bytes()
}

func (o *UnsuccessfulEndBatchExecutionOpinion) signingPayload() []byte {
	e := calltypes.NewEncoder(48)
	e.PutUint8(uint8(KindUnsuccessful))
	e.PutUint64(o.BatchIndex)
	e.PutFixed(o.ExecutorKey[:])
	e.PutUint8(uint8(o.Reason))
	return e.Bytes()
}

func encodeProofs(p poex.Proofs) []byte {
	e := calltypes.NewEncoder(128)
	e.PutFixed(p.T.X.Marshal())
	e.PutFixed(p.T.Y.Marshal())
	e.PutFixed(p.R.Marshal())
	return e.Bytes()
}

func encodeVerificationInfo(v poex.VerificationInfo) []byte {
	e := calltypes.NewEncoder(32 * (len(v.Ys)*2 + 1))
	e.PutUint64(v.BatchIndex)
	e.PutUint32(uint32(len(v.Ys)))
	for i := range v.Ys {
		e.PutFixed(v.Ys[i].X.Marshal())
		e.PutFixed(v.Ys[i].Y.Marshal())
	}
	return e.Bytes()
}
