// Copyright 2025 Certen Protocol
//
// In-memory adapters for the pkg/executor collaborator interfaces: a
// VirtualMachine, Storage, Messenger and ExecutorEventHandler good enough
// to drive the state machine without any real network, VM or database.
// Exported (not test-only) so a caller can wire a development environment,
// and so the core's own test suite is self-contained.

package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// VirtualMachine is a scriptable VirtualMachine: callers enqueue outcomes
// (or a single default outcome) and every ExecuteCall pops the next one.
type VirtualMachine struct {
	mu       sync.Mutex
	Default  executor.CallOutcome
	Queued   []executor.CallOutcome
	Calls    []calltypes.CallRequest
	FailNext error
}

func NewVirtualMachine() *VirtualMachine {
	return &VirtualMachine{Default: executor.CallOutcome{Success: true}}
}

func (m *VirtualMachine) Enqueue(outcomes ...executor.CallOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queued = append(m.Queued, outcomes...)
}

func (m *VirtualMachine) ExecuteCall(ctx context.Context, driveKey calltypes.DriveKey, modID calltypes.ModificationId, call calltypes.CallRequest) (executor.CallOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)

	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return executor.CallOutcome{}, err
	}
	if len(m.Queued) > 0 {
		out := m.Queued[0]
		m.Queued = m.Queued[1:]
		return out, nil
	}
	return m.Default, nil
}

// sandboxModification is the mock's SandboxModification implementation: an
// in-memory file map plus the StorageState it will produce once applied.
type sandboxModification struct {
	mu    sync.Mutex
	id    calltypes.ModificationId
	files map[string][]byte
	state calltypes.StorageState
}

func (s *sandboxModification) ModificationId() calltypes.ModificationId { return s.id }
func (s *sandboxModification) State() calltypes.StorageState            { return s.state }

func (s *sandboxModification) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, fmt.Errorf("mocks: file %q not found", path)
	}
	return data, nil
}

func (s *sandboxModification) WriteFile(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	s.state.UsedDriveSize += uint64(len(data))
	return nil
}

// Storage is a single-drive, in-memory Storage implementation. It tracks
// exactly one drive's current StorageState and lets a test force it out of
// sync to exercise the drive-sync-and-reset reconciliation path.
type Storage struct {
	mu    sync.Mutex
	state calltypes.StorageState
	seq   uint64
}

func NewStorage(initial calltypes.StorageState) *Storage {
	return &Storage{state: initial}
}

func (s *Storage) CurrentState(ctx context.Context, driveKey calltypes.DriveKey) (calltypes.StorageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *Storage) OpenModification(ctx context.Context, driveKey calltypes.DriveKey) (executor.SandboxModification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	var id calltypes.ModificationId
	id[0] = byte(s.seq)
	id[1] = byte(s.seq >> 8)
	return &sandboxModification{id: id, files: make(map[string][]byte), state: s.state}, nil
}

func (s *Storage) ApplyModification(ctx context.Context, mod executor.SandboxModification) (calltypes.StorageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = mod.State()
	return s.state, nil
}

func (s *Storage) DiscardModification(ctx context.Context, mod executor.SandboxModification) error {
	return nil
}

func (s *Storage) SyncToState(ctx context.Context, driveKey calltypes.DriveKey, state calltypes.StorageState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	return nil
}

// Messenger is an in-process Messenger: Broadcast fans out synchronously to
// every currently subscribed handler for the message's contract.
type Messenger struct {
	mu       sync.Mutex
	handlers map[calltypes.ContractKey][]func(executor.GossipMessage)
	Sent     []executor.GossipMessage
}

func NewMessenger() *Messenger {
	return &Messenger{handlers: make(map[calltypes.ContractKey][]func(executor.GossipMessage))}
}

func (m *Messenger) Broadcast(ctx context.Context, msg executor.GossipMessage) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, msg)
	handlers := append([]func(executor.GossipMessage){}, m.handlers[msg.ContractKey]...)
	m.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(msg)
		}
	}
	return nil
}

func (m *Messenger) Subscribe(contractKey calltypes.ContractKey, handler func(executor.GossipMessage)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[contractKey] = append(m.handlers[contractKey], handler)
	idx := len(m.handlers[contractKey]) - 1
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		handlers := m.handlers[contractKey]
		if idx < len(handlers) {
			handlers[idx] = nil
		}
	}, nil
}

// EventHandler records every event the core reports, for test assertions.
type EventHandler struct {
	mu                 sync.Mutex
	BatchReady         []uint64
	SuccessfulBatches  []uint64
	FailedBatches      []uint64
	LastFailureReason  string
}

func NewEventHandler() *EventHandler { return &EventHandler{} }

func (h *EventHandler) OnBatchReady(contractKey calltypes.ContractKey, batchIndex uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.BatchReady = append(h.BatchReady, batchIndex)
}

func (h *EventHandler) OnEndBatchExecutionSuccessful(contractKey calltypes.ContractKey, batchIndex uint64, state calltypes.StorageState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.SuccessfulBatches = append(h.SuccessfulBatches, batchIndex)
}

func (h *EventHandler) OnEndBatchExecutionFailed(contractKey calltypes.ContractKey, batchIndex uint64, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.FailedBatches = append(h.FailedBatches, batchIndex)
	h.LastFailureReason = reason
}

// ChainClient is an in-memory ChainClient: SubmitEndBatchTransaction
// always "confirms" immediately unless a test sets RejectNext.
type ChainClient struct {
	mu          sync.Mutex
	blockHandlers []func(calltypes.BlockHash, uint64)
	Submitted   []executor.EndBatchTransaction
	RejectNext  bool
}

func NewChainClient() *ChainClient { return &ChainClient{} }

func (c *ChainClient) SubscribeBlocks(ctx context.Context, handler func(calltypes.BlockHash, uint64)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blockHandlers = append(c.blockHandlers, handler)
	idx := len(c.blockHandlers) - 1
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.blockHandlers[idx] = nil
	}, nil
}

// DeliverBlock lets a test simulate a new block announcement.
func (c *ChainClient) DeliverBlock(hash calltypes.BlockHash, height uint64) {
	c.mu.Lock()
	handlers := append([]func(calltypes.BlockHash, uint64){}, c.blockHandlers...)
	c.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(hash, height)
		}
	}
}

func (c *ChainClient) SubmitEndBatchTransaction(ctx context.Context, contractKey calltypes.ContractKey, tx executor.EndBatchTransaction) (calltypes.TransactionHash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Submitted = append(c.Submitted, tx)
	if c.RejectNext {
		c.RejectNext = false
		return calltypes.TransactionHash{}, fmt.Errorf("mocks: chain rejected end-batch transaction for batch %d", tx.BatchIndex)
	}
	var hash calltypes.TransactionHash
	hash[0] = byte(tx.BatchIndex)
	return hash, nil
}
