// Copyright 2025 Certen Protocol
//
// The VM has no shared mutable state across calls but its availability is
// global — many BatchExecutionTasks across many contracts can try to
// dispatch a call at the same moment, and without a bound they would spawn
// one goroutine per call. Pool fronts executor.VirtualMachine with a
// fixed-size worker pool so dispatch concurrency is capped independent of
// how many tasks are live.

package vmpool

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
)

// Pool bounds concurrent dispatch to an underlying VirtualMachine.
type Pool struct {
	vm   executor.VirtualMachine
	pool *ants.Pool
}

// New wraps vm with a worker pool of the given size. size must be positive.
func New(vm executor.VirtualMachine, size int) (*Pool, error) {
	p, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("vmpool: new pool: %w", err)
	}
	return &Pool{vm: vm, pool: p}, nil
}

// Release closes the pool to new work. It does not wait for calls already
// running on a worker to finish.
func (p *Pool) Release() {
	p.pool.Release()
}

// Running reports the number of calls currently dispatched to the VM.
func (p *Pool) Running() int {
	return p.pool.Running()
}

var _ executor.VirtualMachine = (*Pool)(nil)

// result carries ExecuteCall's outcome back out of the pooled goroutine.
type result struct {
	outcome executor.CallOutcome
	err     error
}

// ExecuteCall implements executor.VirtualMachine by submitting the
// underlying call to the pool and blocking until a worker picks it up and
// runs it, or ctx is cancelled first. Submission blocks when the pool is
// saturated (ants.WithNonblocking(false)) rather than failing fast: a
// caller waits its turn for the shared resource instead of being rejected.
func (p *Pool) ExecuteCall(ctx context.Context, driveKey calltypes.DriveKey, modID calltypes.ModificationId, call calltypes.CallRequest) (executor.CallOutcome, error) {
	done := make(chan result, 1)
	submitErr := make(chan error, 1)

	// Submit itself blocks the calling goroutine when every worker is busy
	// (ants.WithNonblocking(false)); run it on its own goroutine so a
	// cancelled ctx still unblocks ExecuteCall's caller immediately instead
	// of waiting for a worker to free up first.
	go func() {
		err := p.pool.Submit(func() {
			outcome, err := p.vm.ExecuteCall(ctx, driveKey, modID, call)
			done <- result{outcome: outcome, err: err}
		})
		if err != nil {
			submitErr <- err
		}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case err := <-submitErr:
		return executor.CallOutcome{}, fmt.Errorf("vmpool: submit: %w", err)
	case <-ctx.Done():
		return executor.CallOutcome{}, ctx.Err()
	}
}
