// Copyright 2025 Certen Protocol
//
// ContractRunner is the process-wiring layer the core itself never
// contains: one BatchesManager feeding a strictly sequential rotation of
// BatchExecutionTask instances for a single contract, wired up the way a
// process main wires one long-lived goroutine per background subsystem
// rather than leaving a package to manage its own lifetime.

package main

import (
	"context"
	"log"
	"sync"

	"github.com/certen/contract-executor/pkg/batchesmanager"
	"github.com/certen/contract-executor/pkg/batchexecution"
	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// ContractRunner owns one contract's BatchesManager and drives its
// emitted batches through one BatchExecutionTask at a time. A batch for
// idx+1 never starts until the task for idx has reached its terminal
// state, since runBatch blocks on task.Done() before the loop asks the
// manager for the next one.
type ContractRunner struct {
	logger      *log.Logger
	contractKey calltypes.ContractKey
	manager     *batchesmanager.Manager
	messenger   executor.Messenger
	chainClient *publishingChainClient
	taskConfig  *batchexecution.Config

	mu         sync.RWMutex
	activeTask *batchexecution.Task
}

// Run subscribes to gossip for this contract and starts the batch-draining
// loop. It returns once ctx is cancelled and the current batch (if any)
// has reached its terminal state.
func (r *ContractRunner) Run(ctx context.Context) error {
	unsubscribeGossip, err := r.messenger.Subscribe(r.contractKey, r.dispatchGossip)
	if err != nil {
		return err
	}
	defer unsubscribeGossip()

	unsubscribeBlocks, err := r.chainClient.SubscribeBlocks(ctx, func(_ calltypes.BlockHash, height uint64) {
		if err := r.manager.AddBlock(height); err != nil {
			r.logger.Printf("contract %s: add block %d: %v", r.contractKey, height, err)
		}
	})
	if err != nil {
		return err
	}
	defer unsubscribeBlocks()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.manager.Ready():
		}

		for r.manager.HasNextBatch() {
			batch, err := r.manager.NextBatch()
			if err != nil {
				r.logger.Printf("contract %s: next batch: %v", r.contractKey, err)
				break
			}
			r.runBatch(ctx, batch)

			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}
	}
}

func (r *ContractRunner) runBatch(ctx context.Context, batch calltypes.Batch) {
	task := batchexecution.New(r.taskConfig, batch)

	r.chainClient.setActive(r.contractKey, task)
	r.setActiveTask(task)
	defer func() {
		r.chainClient.setActive(r.contractKey, nil)
		r.setActiveTask(nil)
	}()

	r.logger.Printf("contract %s: starting batch %d (%d calls)", r.contractKey, batch.BatchIndex, len(batch.CallRequests))
	task.Run(ctx)
	<-task.Done()
	r.logger.Printf("contract %s: batch %d reached %s", r.contractKey, batch.BatchIndex, task.State())
}

func (r *ContractRunner) setActiveTask(t *batchexecution.Task) {
	r.mu.Lock()
	r.activeTask = t
	r.mu.Unlock()
}

// dispatchGossip routes an incoming opinion to whichever task is currently
// running; a message that arrives between two batches (no active task, or
// for a batch index the active task has already moved past) is simply
// dropped, the way Task.ReceiveOpinion itself drops anything that doesn't
// match its own batch index.
func (r *ContractRunner) dispatchGossip(msg executor.GossipMessage) {
	r.mu.RLock()
	t := r.activeTask
	r.mu.RUnlock()
	if t == nil {
		return
	}
	t.ReceiveOpinion(context.Background(), msg)
}

// publishingChainClient wraps the real executor.ChainClient and turns its
// synchronous SubmitEndBatchTransaction confirmation into the
// OnEndBatchExecutionPublished/OnEndBatchExecutionFailed calls a Task
// expects to receive from outside itself. mocks.ChainClient (the only
// ChainClient this repository ships) confirms every submission immediately,
// so "submitted without error" and "published successfully" coincide here;
// a production ChainClient with genuine confirmation latency and the
// ability to report a chain-agreed state that diverges from the task's own
// would drive these same two calls from its own block-subscription
// callback instead of from inside Submit.
type publishingChainClient struct {
	executor.ChainClient

	mu     sync.Mutex
	active map[calltypes.ContractKey]*batchexecution.Task
}

func newPublishingChainClient(inner executor.ChainClient) *publishingChainClient {
	return &publishingChainClient{
		ChainClient: inner,
		active:      make(map[calltypes.ContractKey]*batchexecution.Task),
	}
}

func (c *publishingChainClient) setActive(key calltypes.ContractKey, task *batchexecution.Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task == nil {
		delete(c.active, key)
		return
	}
	c.active[key] = task
}

func (c *publishingChainClient) SubmitEndBatchTransaction(ctx context.Context, contractKey calltypes.ContractKey, tx executor.EndBatchTransaction) (calltypes.TransactionHash, error) {
	hash, err := c.ChainClient.SubmitEndBatchTransaction(ctx, contractKey, tx)

	c.mu.Lock()
	task := c.active[contractKey]
	c.mu.Unlock()
	if task == nil {
		return hash, err
	}

	if err != nil {
		task.OnEndBatchExecutionFailed(ctx)
		return hash, err
	}

	task.OnEndBatchExecutionPublished(ctx, batchexecution.PublishedInfo{
		BatchIndex: tx.BatchIndex,
		Success:    tx.Successful,
		DriveState: tx.StorageState,
	})
	return hash, err
}

// buildAutomaticEvaluator adapts the VM/Storage pair into the speculative
// evaluator BatchesManager needs to decide whether a closing block fires
// an automatic call: open a throwaway modification, run a synthetic
// automatic call through it, and discard it regardless of outcome — the
// VM has no dedicated "would this trigger fire" entry point distinct from
// actually executing a call.
func buildAutomaticEvaluator(vm executor.VirtualMachine, storage executor.Storage, driveKey calltypes.DriveKey) batchesmanager.AutomaticEvaluator {
	return func(ctx context.Context, blockHeight uint64) (bool, error) {
		mod, err := storage.OpenModification(ctx, driveKey)
		if err != nil {
			return false, err
		}
		defer storage.DiscardModification(ctx, mod)

		call := calltypes.CallRequest{
			Kind:        calltypes.CallKindAutomatic,
			BlockHeight: blockHeight,
		}
		outcome, err := vm.ExecuteCall(ctx, driveKey, mod.ModificationId(), call)
		if err != nil {
			return false, err
		}
		return outcome.Success, nil
	}
}
