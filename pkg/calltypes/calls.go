// Copyright 2025 Certen Protocol

package calltypes

import "fmt"

// CallKind discriminates manual calls (submitted by a caller transaction)
// from automatic calls (triggered by the contract's own automatic-execution
// policy once a block closes a batch).
type CallKind uint8

const (
	CallKindManual CallKind = iota
	CallKindAutomatic
)

func (k CallKind) String() string {
	switch k {
	case CallKindManual:
		return "manual"
	case CallKindAutomatic:
		return "automatic"
	default:
		return fmt.Sprintf("CallKind(%d)", uint8(k))
	}
}

// CallRequest is a single call queued for batch execution. Manual calls
// carry a non-zero CallerKey and the block at which
// they were announced; automatic calls are synthesized by BatchesManager
// itself and carry a zero CallerKey.
type CallRequest struct {
	CallId        CallId
	Kind          CallKind
	CallerKey     CallerKey
	BlockHash     BlockHash
	BlockHeight   uint64
	Parameters    []byte
	ServicePayers []MosaicAmount
}

// IsManual reports whether this call was submitted by a caller transaction.
func (c *CallRequest) IsManual() bool {
	return c.Kind == CallKindManual
}

// Validate checks structural invariants independent of batch context:
// manual calls must name a caller, automatic calls must not.
func (c *CallRequest) Validate() error {
	switch c.Kind {
	case CallKindManual:
		if c.CallerKey.IsZero() {
			return fmt.Errorf("%w: manual call %s has zero caller key", ErrInvalidCallRequest, c.CallId)
		}
	case CallKindAutomatic:
		if !c.CallerKey.IsZero() {
			return fmt.Errorf("%w: automatic call %s has non-zero caller key", ErrInvalidCallRequest, c.CallId)
		}
	default:
		return fmt.Errorf("%w: unknown call kind %d for call %s", ErrInvalidCallRequest, c.Kind, c.CallId)
	}
	return nil
}

// Batch is a gap-free, indexed group of call requests closed by
// BatchesManager. BatchIndex starts at 1; AutomaticCheckedUpTo
// records the highest block height the automatic-execution evaluator has
// already inspected when forming this batch, so a later re-evaluation never
// re-checks a block twice.
type Batch struct {
	BatchIndex           uint64
	AutomaticCheckedUpTo uint64
	CallRequests         []CallRequest
}

// IsEmpty reports whether the batch carries no calls — BatchesManager never
// emits one of these; it exists only as an intermediate accumulation state.
func (b *Batch) IsEmpty() bool {
	return len(b.CallRequests) == 0
}

// StorageState is the drive snapshot summary carried in opinions and
// end-batch transactions.
type StorageState struct {
	StorageHash     StorageHash
	UsedDriveSize   uint64
	MetaFilesSize   uint64
	FileStructureSize uint64
}

// Equal compares two storage states by value.
func (s StorageState) Equal(other StorageState) bool {
	return s.StorageHash == other.StorageHash &&
		s.UsedDriveSize == other.UsedDriveSize &&
		s.MetaFilesSize == other.MetaFilesSize &&
		s.FileStructureSize == other.FileStructureSize
}
