// Copyright 2025 Certen Protocol
//
// BatchExecutionTask: the state machine carrying one batch from "ready to
// run" to "finalized on chain". Shaped after a phase-driven orchestrator
// struct with injected collaborators and callback hooks, advancing through
// fixed phases while a handful of maps accumulate peer responses — but
// driven entirely through a threadmanager.ThreadManager instead of an ad
// hoc mutex, since every transition here genuinely is triggered by an
// asynchronous collaborator callback (VM return, peer opinion, chain
// publish) that must never race with another.

package batchexecution

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/executor"
	"github.com/certen/contract-executor/pkg/opinion"
	"github.com/certen/contract-executor/pkg/poex"
	"github.com/certen/contract-executor/pkg/threadmanager"
)

// State names one node of the batch execution state machine.
type State uint8

const (
	StateInitiateModifications State = iota
	StateExecuteCalls
	StateEvaluateHash
	StateShareOpinions
	StateThresholdMet
	StateAssembleTx
	StateAwaitPublished
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateInitiateModifications:
		return "INITIATE_MODIFICATIONS"
	case StateExecuteCalls:
		return "EXECUTE_CALLS"
	case StateEvaluateHash:
		return "EVALUATE_HASH"
	case StateShareOpinions:
		return "SHARE_OPINIONS"
	case StateThresholdMet:
		return "THRESHOLD_MET"
	case StateAssembleTx:
		return "ASSEMBLE_TX"
	case StateAwaitPublished:
		return "AWAIT_PUBLISHED"
	case StateTerminal:
		return "TERMINAL"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// PublishedInfo is what the chain collaborator reports once an assembled
// end-batch transaction is finalized (or not).
type PublishedInfo struct {
	BatchIndex       uint64
	Success          bool
	DriveState       calltypes.StorageState
	VerificationInfo poex.VerificationInfo
}

// Task runs a single batch through the state machine above. Every exported
// method posts its work onto the task's own ThreadManager and returns
// immediately; state is only ever touched from that one goroutine.
type Task struct {
	cfg    *Config
	tm     *threadmanager.ThreadManager
	ownsTM bool

	// id correlates this task's log lines with the one run of a batch it
	// represents; a fresh id is drawn per Task since a retried or delayed
	// batch gets its own Task instance, not a reused one.
	id string

	batch calltypes.Batch

	state      State
	terminated bool
	done       chan struct{}

	mod               executor.SandboxModification
	isBatchSuccessful bool
	appendedCalls     int
	// proofReverted tracks whether this task has already popped its
	// appendedCalls contributions back out of SelfPoex, so a later
	// chain-confirmed failure doesn't pop a second time and unwind calls
	// that belong to an earlier, already-settled batch.
	proofReverted bool

	localStorageState     calltypes.StorageState
	localVerificationInfo poex.VerificationInfo

	localOpinionKind  opinion.Kind
	localSuccessful   *opinion.SuccessfulEndBatchExecutionOpinion
	localUnsuccessful *opinion.UnsuccessfulEndBatchExecutionOpinion
	failureReason     opinion.FailureReason

	matchingSuccessful   map[calltypes.ExecutorKey]*opinion.SuccessfulEndBatchExecutionOpinion
	matchingUnsuccessful map[calltypes.ExecutorKey]*opinion.UnsuccessfulEndBatchExecutionOpinion

	thresholdScheduled bool
	shareOpinionCancel threadmanager.CancelFunc

	shareOpinionsStarted time.Time
	finalSuccess         bool
}

// New creates a Task for batch. cfg's VM/Storage/Messenger/ChainClient/
// EventHandler/SelfPoex/SigningKey must all be set.
func New(cfg *Config, batch calltypes.Batch) *Task {
	return &Task{
		cfg:                  cfg,
		tm:                   threadmanager.New(&threadmanager.Config{Logger: cfg.Logger}),
		ownsTM:               true,
		id:                   uuid.NewString(),
		batch:                batch,
		done:                 make(chan struct{}),
		matchingSuccessful:   make(map[calltypes.ExecutorKey]*opinion.SuccessfulEndBatchExecutionOpinion),
		matchingUnsuccessful: make(map[calltypes.ExecutorKey]*opinion.UnsuccessfulEndBatchExecutionOpinion),
		isBatchSuccessful:    true,
	}
}

// Done is closed once the task reaches TERMINAL.
func (t *Task) Done() <-chan struct{} { return t.done }

// ID returns the task's run-scoped correlation id, for log and metric
// labeling.
func (t *Task) ID() string { return t.id }

// State reports the task's current state. Safe to call from any goroutine
// only after Done() has fired; during execution it is advisory only.
func (t *Task) State() State { return t.state }

// Run starts the state machine.
func (t *Task) Run(ctx context.Context) {
	t.tm.Post(func() { t.runInitiateModifications(ctx) })
}

func (t *Task) runInitiateModifications(ctx context.Context) {
	t.state = StateInitiateModifications
	mod, err := t.cfg.Storage.OpenModification(ctx, t.cfg.DriveKey)
	if err != nil {
		t.abort(ctx, fmt.Errorf("%w: open modification: %v", ErrStorageUnavailable, err))
		return
	}
	t.mod = mod
	t.runExecuteCalls(ctx)
}

func (t *Task) runExecuteCalls(ctx context.Context) {
	t.state = StateExecuteCalls

	for _, call := range t.batch.CallRequests {
		outcome := t.executeCallWithRetry(ctx, call)
		if err := t.mod.WriteFile(outcomeLogPath(call.CallId), outcome.ResultData); err != nil {
			t.abort(ctx, fmt.Errorf("%w: write call result: %v", ErrStorageUnavailable, err))
			return
		}
		if !outcome.Success {
			t.isBatchSuccessful = false
		}

		y, err := t.cfg.SelfPoex.AddToProof(outcome.ProofOfExecutionSecret)
		if err != nil {
			t.abort(ctx, fmt.Errorf("batchexecution: append proof contribution: %w", err))
			return
		}
		t.appendedCalls++
		t.localVerificationInfo.BatchIndex = t.batch.BatchIndex
		t.localVerificationInfo.Ys = append(t.localVerificationInfo.Ys, y)
	}

	t.runEvaluateHash(ctx)
}

// executeCallWithRetry dispatches call to the VM, retrying on a transient
// error up to cfg.VMMaxRetries times with a fixed backoff; exhausting
// retries reports the call itself as failed rather than aborting the task.
func (t *Task) executeCallWithRetry(ctx context.Context, call calltypes.CallRequest) executor.CallOutcome {
	attempts := 0
	for {
		outcome, err := t.cfg.VM.ExecuteCall(ctx, t.cfg.DriveKey, t.mod.ModificationId(), call)
		if err == nil {
			t.recordCallExecuted(outcome)
			return outcome
		}
		attempts++
		if attempts > t.cfg.VMMaxRetries {
			t.cfg.Logger.Printf("call %s: exhausted %d retries, marking failed: %v", call.CallId, t.cfg.VMMaxRetries, err)
			t.recordCallExecuted(executor.CallOutcome{Success: false})
			return executor.CallOutcome{Success: false}
		}
		if t.cfg.Metrics != nil {
			t.cfg.Metrics.VMRetries.WithLabelValues(t.contractLabel()).Inc()
		}
		t.cfg.Logger.Printf("call %s: vm unavailable, retry %d/%d after %s: %v", call.CallId, attempts, t.cfg.VMMaxRetries, t.cfg.VMFailureBackoff, err)
		select {
		case <-ctx.Done():
			t.recordCallExecuted(executor.CallOutcome{Success: false})
			return executor.CallOutcome{Success: false}
		case <-time.After(t.cfg.VMFailureBackoff):
		}
	}
}

func (t *Task) recordCallExecuted(outcome executor.CallOutcome) {
	if t.cfg.Metrics == nil {
		return
	}
	t.cfg.Metrics.CallsExecuted.WithLabelValues(t.contractLabel()).Inc()
	if !outcome.Success {
		t.cfg.Metrics.CallFailures.WithLabelValues(t.contractLabel()).Inc()
	}
}

func (t *Task) contractLabel() string {
	return t.cfg.ContractKey.String()
}

func (t *Task) runEvaluateHash(ctx context.Context) {
	t.state = StateEvaluateHash
	t.localStorageState = t.mod.State()
	t.runShareOpinions(ctx)
}

func (t *Task) runShareOpinions(ctx context.Context) {
	t.state = StateShareOpinions
	t.shareOpinionsStarted = time.Now()

	if t.isBatchSuccessful {
		t.localOpinionKind = opinion.KindSuccessful
		op := &opinion.SuccessfulEndBatchExecutionOpinion{
			BatchIndex:       t.batch.BatchIndex,
			ExecutorKey:      t.cfg.SelfExecutorKey,
			StorageState:     t.localStorageState,
			Proofs:           t.cfg.SelfPoex.BuildActualProof(),
			VerificationInfo: t.localVerificationInfo,
		}
		op.Sign(t.cfg.SigningKey)
		t.localSuccessful = op
	} else {
		for i := 0; i < t.appendedCalls; i++ {
			if err := t.cfg.SelfPoex.PopFromProof(); err != nil {
				t.cfg.Logger.Printf("pop proof contribution %d/%d: %v", i+1, t.appendedCalls, err)
				break
			}
		}
		t.proofReverted = true
		if t.failureReason == opinion.FailureReasonUnspecified {
			t.failureReason = opinion.FailureReasonVirtualMachineFatal
		}
		t.localOpinionKind = opinion.KindUnsuccessful
		op := &opinion.UnsuccessfulEndBatchExecutionOpinion{
			BatchIndex:  t.batch.BatchIndex,
			ExecutorKey: t.cfg.SelfExecutorKey,
			Reason:      t.failureReason,
		}
		op.Sign(t.cfg.SigningKey)
		t.localUnsuccessful = op
	}

	t.broadcastLocalOpinion(ctx)
	t.scheduleShareOpinions(ctx)
	t.checkThreshold(ctx)
}

func (t *Task) scheduleShareOpinions(ctx context.Context) {
	t.shareOpinionCancel = t.tm.PostDelayed(t.cfg.ShareOpinionTimeout, func() {
		if t.terminated {
			return
		}
		t.broadcastLocalOpinion(ctx)
		t.scheduleShareOpinions(ctx)
	})
}

func (t *Task) broadcastLocalOpinion(ctx context.Context) {
	var payload []byte
	switch t.localOpinionKind {
	case opinion.KindSuccessful:
		payload = t.localSuccessful.Encode()
	case opinion.KindUnsuccessful:
		payload = t.localUnsuccessful.Encode()
	}
	if err := t.cfg.Messenger.Broadcast(ctx, executor.GossipMessage{ContractKey: t.cfg.ContractKey, Payload: payload}); err != nil {
		t.cfg.Logger.Printf("broadcast opinion for batch %d: %v", t.batch.BatchIndex, err)
	}
}

// ReceiveOpinion is the Messenger-facing entry point for a peer's gossiped
// opinion message.
func (t *Task) ReceiveOpinion(ctx context.Context, msg executor.GossipMessage) {
	t.tm.Post(func() {
		if t.terminated {
			return
		}
		if err := t.handleOpinion(ctx, msg.Payload); err != nil {
			t.cfg.Logger.Printf("reject opinion for batch %d: %v", t.batch.BatchIndex, err)
			if t.cfg.Metrics != nil {
				t.cfg.Metrics.OpinionsRejected.WithLabelValues(t.contractLabel(), rejectReason(err)).Inc()
			}
		}
	})
}

// rejectReason buckets a handleOpinion error into a small, stable label set
// rather than exposing the raw error string as a metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrBatchIndexMismatch):
		return "batch_index_mismatch"
	case errors.Is(err, ErrUnknownPeer):
		return "unknown_peer"
	default:
		return "invalid"
	}
}

func (t *Task) handleOpinion(ctx context.Context, payload []byte) error {
	kind, err := opinion.DecodeOpinionKind(payload)
	if err != nil {
		return err
	}

	switch kind {
	case opinion.KindSuccessful:
		op, err := opinion.DecodeSuccessfulOpinion(payload)
		if err != nil {
			return err
		}
		return t.handleSuccessfulOpinion(ctx, op)
	case opinion.KindUnsuccessful:
		op, err := opinion.DecodeUnsuccessfulOpinion(payload)
		if err != nil {
			return err
		}
		return t.handleUnsuccessfulOpinion(ctx, op)
	default:
		return fmt.Errorf("batchexecution: unknown opinion kind %d", kind)
	}
}

func (t *Task) verifyPeerOpinionProof(peerKey calltypes.ExecutorKey, proofs poex.Proofs, verificationInfo poex.VerificationInfo) (bool, error) {
	info, ok := t.cfg.PeerExecutorInfo[peerKey]
	if !ok {
		return false, ErrUnknownPeer
	}
	peerPoex, ok := t.cfg.PeerPoex[peerKey]
	if !ok {
		return false, ErrUnknownPeer
	}
	peerPubKey, ok := t.cfg.PeerPoexPublicKey[peerKey]
	if !ok {
		return false, ErrUnknownPeer
	}

	ok, err := peerPoex.VerifyProof(peerPubKey, info.BatchProof, info.NextBatchToApprove, proofs, t.batch.BatchIndex, verificationInfo)
	if err != nil {
		return false, err
	}
	if ok {
		peerPoex.AddBatchVerificationInformation(verificationInfo)
		t.cfg.PeerExecutorInfo[peerKey] = opinion.ExecutorInfo{
			InitialBatch:       t.batch.BatchIndex,
			BatchProof:         proofs,
			NextBatchToApprove: t.batch.BatchIndex + 1,
		}
	}
	return ok, nil
}

// ysMatch reports whether two executors folded identical Y contributions
// into their accumulators. Comparing only the count would accept two
// executors that executed different calls (or the same calls with
// divergent results) as long as they happened to make the same number of
// them; proof-of-execution only does its job if peers compare the actual
// points.
func ysMatch(a, b []poex.Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(&b[i]) {
			return false
		}
	}
	return true
}

func (t *Task) handleSuccessfulOpinion(ctx context.Context, op *opinion.SuccessfulEndBatchExecutionOpinion) error {
	if op.BatchIndex != t.batch.BatchIndex {
		return ErrBatchIndexMismatch
	}
	verified, err := op.Verify(ed25519.PublicKey(op.ExecutorKey[:]))
	if err != nil || !verified {
		return fmt.Errorf("batchexecution: signature verification failed for executor %s", op.ExecutorKey)
	}
	proofOK, err := t.verifyPeerOpinionProof(op.ExecutorKey, op.Proofs, op.VerificationInfo)
	if err != nil {
		return err
	}
	if !proofOK {
		return fmt.Errorf("batchexecution: proof verification failed for executor %s", op.ExecutorKey)
	}

	if op.StorageState.Equal(t.localStorageState) && ysMatch(op.VerificationInfo.Ys, t.localVerificationInfo.Ys) {
		t.matchingSuccessful[op.ExecutorKey] = op
		if t.cfg.Metrics != nil {
			t.cfg.Metrics.OpinionsReceived.WithLabelValues(t.contractLabel(), "successful").Inc()
		}
		t.checkThreshold(ctx)
	}
	return nil
}

func (t *Task) handleUnsuccessfulOpinion(ctx context.Context, op *opinion.UnsuccessfulEndBatchExecutionOpinion) error {
	if op.BatchIndex != t.batch.BatchIndex {
		return ErrBatchIndexMismatch
	}
	verified, err := op.Verify(ed25519.PublicKey(op.ExecutorKey[:]))
	if err != nil || !verified {
		return fmt.Errorf("batchexecution: signature verification failed for executor %s", op.ExecutorKey)
	}
	if _, ok := t.cfg.PeerExecutorInfo[op.ExecutorKey]; !ok {
		return ErrUnknownPeer
	}

	t.matchingUnsuccessful[op.ExecutorKey] = op
	if t.cfg.Metrics != nil {
		t.cfg.Metrics.OpinionsReceived.WithLabelValues(t.contractLabel(), "unsuccessful").Inc()
	}
	t.checkThreshold(ctx)
	return nil
}

func (t *Task) checkThreshold(ctx context.Context) {
	if t.thresholdScheduled || t.terminated {
		return
	}

	cohortSize := len(t.cfg.ExecutorKeys)
	successCount := len(t.matchingSuccessful)
	unsuccessfulCount := len(t.matchingUnsuccessful)
	if t.isBatchSuccessful {
		successCount++
	} else {
		unsuccessfulCount++
	}

	if t.cfg.Threshold.IsThresholdMet(successCount, cohortSize) {
		t.thresholdScheduled = true
		t.state = StateThresholdMet
		t.recordThresholdWait()
		t.tm.PostDelayed(t.cfg.SuccessfulExecutionDelay, func() {
			if t.terminated {
				return
			}
			t.assembleSuccessfulTx(ctx)
		})
		return
	}

	remainingPossibleSuccess := cohortSize - unsuccessfulCount
	if t.cfg.Threshold.IsThresholdMet(unsuccessfulCount, cohortSize) && remainingPossibleSuccess < t.cfg.Threshold.RequiredCount(cohortSize) {
		t.thresholdScheduled = true
		t.state = StateThresholdMet
		t.recordThresholdWait()
		t.tm.PostDelayed(t.cfg.UnsuccessfulExecutionDelay, func() {
			if t.terminated {
				return
			}
			t.assembleUnsuccessfulTx(ctx)
		})
	}
}

func (t *Task) recordThresholdWait() {
	if t.cfg.Metrics == nil || t.shareOpinionsStarted.IsZero() {
		return
	}
	t.cfg.Metrics.ThresholdWaits.WithLabelValues(t.contractLabel()).Observe(time.Since(t.shareOpinionsStarted).Seconds())
}

func (t *Task) assembleSuccessfulTx(ctx context.Context) {
	t.state = StateAssembleTx

	keys := make([]calltypes.ExecutorKey, 0, len(t.matchingSuccessful)+1)
	keys = append(keys, t.cfg.SelfExecutorKey)
	for k := range t.matchingSuccessful {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	sigs := make([]calltypes.Signature, 0, len(keys))
	for _, k := range keys {
		if k == t.cfg.SelfExecutorKey {
			sigs = append(sigs, t.localSuccessful.Signature)
			continue
		}
		sigs = append(sigs, t.matchingSuccessful[k].Signature)
	}

	tx := executor.EndBatchTransaction{
		ContractKey:  t.cfg.ContractKey,
		BatchIndex:   t.batch.BatchIndex,
		Successful:   true,
		StorageState: t.localStorageState,
		ExecutorKeys: keys,
		Signatures:   sigs,
	}
	t.state = StateAwaitPublished
	if _, err := t.cfg.ChainClient.SubmitEndBatchTransaction(ctx, t.cfg.ContractKey, tx); err != nil {
		t.cfg.Logger.Printf("submit end-batch tx for batch %d: %v", t.batch.BatchIndex, err)
	}
}

func (t *Task) assembleUnsuccessfulTx(ctx context.Context) {
	t.state = StateAssembleTx

	keys := make([]calltypes.ExecutorKey, 0, len(t.matchingUnsuccessful)+1)
	keys = append(keys, t.cfg.SelfExecutorKey)
	for k := range t.matchingUnsuccessful {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	sigs := make([]calltypes.Signature, 0, len(keys))
	for _, k := range keys {
		if k == t.cfg.SelfExecutorKey {
			sigs = append(sigs, t.localUnsuccessful.Signature)
			continue
		}
		sigs = append(sigs, t.matchingUnsuccessful[k].Signature)
	}

	tx := executor.EndBatchTransaction{
		ContractKey:  t.cfg.ContractKey,
		BatchIndex:   t.batch.BatchIndex,
		Successful:   false,
		ExecutorKeys: keys,
		Signatures:   sigs,
	}
	t.state = StateAwaitPublished
	if _, err := t.cfg.ChainClient.SubmitEndBatchTransaction(ctx, t.cfg.ContractKey, tx); err != nil {
		t.cfg.Logger.Printf("submit end-batch tx for batch %d: %v", t.batch.BatchIndex, err)
	}
}

// OnEndBatchExecutionPublished delivers the chain's verdict on the
// assembled end-batch transaction.
func (t *Task) OnEndBatchExecutionPublished(ctx context.Context, info PublishedInfo) {
	t.tm.Post(func() {
		if t.terminated || info.BatchIndex != t.batch.BatchIndex {
			return
		}
		if info.Success && info.DriveState.Equal(t.localStorageState) {
			if _, err := t.cfg.Storage.ApplyModification(ctx, t.mod); err != nil {
				t.cfg.Logger.Printf("apply storage modification for batch %d: %v", t.batch.BatchIndex, err)
			}
			t.cfg.SelfPoex.AdvanceCheckpoint()
			t.finalSuccess = true
			t.terminate()
			return
		}

		if info.Success {
			if err := t.cfg.Storage.DiscardModification(ctx, t.mod); err != nil {
				t.cfg.Logger.Printf("discard storage modification for batch %d: %v", t.batch.BatchIndex, err)
			}
			if err := t.cfg.Storage.SyncToState(ctx, t.cfg.DriveKey, info.DriveState); err != nil {
				t.cfg.Logger.Printf("sync drive to published state for batch %d: %v", t.batch.BatchIndex, err)
			}
			t.cfg.SelfPoex.AddBatchVerificationInformation(info.VerificationInfo)
			t.cfg.SelfPoex.Reset(t.batch.BatchIndex)
			if t.cfg.Metrics != nil {
				t.cfg.Metrics.PoexResets.WithLabelValues(t.contractLabel()).Inc()
			}
			t.finalSuccess = true
			t.terminate()
			return
		}

		t.discardAndPop(ctx)
		t.finalSuccess = false
		t.terminate()
	})
}

// OnEndBatchExecutionFailed is delivered when the chain could not assemble
// the end-batch transaction at all.
func (t *Task) OnEndBatchExecutionFailed(ctx context.Context) {
	t.tm.Post(func() {
		if t.terminated {
			return
		}
		t.discardAndPop(ctx)
		t.finalSuccess = false
		t.terminate()
	})
}

// discardAndPop undoes the task's local side effects on a failed or
// rejected batch: the open drive modification and every proof-of-execution
// contribution this task appended. Both can fail independently, so their
// errors are combined rather than the first one masking the second.
func (t *Task) discardAndPop(ctx context.Context) {
	var errs error
	if t.mod != nil {
		if err := t.cfg.Storage.DiscardModification(ctx, t.mod); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("discard storage modification: %w", err))
		}
	}
	if !t.proofReverted {
		for i := 0; i < t.appendedCalls; i++ {
			if err := t.cfg.SelfPoex.PopFromProof(); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("pop proof contribution %d/%d: %w", i+1, t.appendedCalls, err))
				break
			}
		}
		t.proofReverted = true
	}
	if errs != nil {
		t.cfg.Logger.Printf("task %s: reconciling batch %d: %v", t.id, t.batch.BatchIndex, errs)
	}
}

// Cancel stops the task: it stops scheduling further work and ignores any
// opinion or callback delivered afterward.
func (t *Task) Cancel() {
	t.tm.Post(func() {
		if t.terminated {
			return
		}
		t.terminate()
	})
}

func (t *Task) terminate() {
	if t.terminated {
		return
	}
	t.terminated = true
	t.state = StateTerminal
	if t.shareOpinionCancel != nil {
		t.shareOpinionCancel()
	}
	if t.cfg.Metrics != nil {
		outcome := "unsuccessful"
		if t.finalSuccess {
			outcome = "successful"
		}
		t.cfg.Metrics.BatchesClosed.WithLabelValues(t.contractLabel(), outcome).Inc()
	}
	if t.cfg.EventHandler != nil {
		if t.finalSuccess {
			t.cfg.EventHandler.OnEndBatchExecutionSuccessful(t.cfg.ContractKey, t.batch.BatchIndex, t.localStorageState)
		} else {
			t.cfg.EventHandler.OnEndBatchExecutionFailed(t.cfg.ContractKey, t.batch.BatchIndex, t.failureReason.String())
		}
	}
	close(t.done)
	if t.ownsTM {
		go t.tm.Stop()
	}
}

// abort stops the task immediately for a non-retryable collaborator
// failure (storage unavailable), reporting it as an unsuccessful batch
// without attempting the normal opinion-sharing flow.
func (t *Task) abort(ctx context.Context, err error) {
	t.cfg.Logger.Printf("aborting batch %d: %v", t.batch.BatchIndex, err)
	t.failureReason = opinion.FailureReasonStorageOperational
	t.discardAndPop(ctx)
	t.finalSuccess = false
	t.terminate()
}

func outcomeLogPath(callID calltypes.CallId) string {
	return "/.results/" + callID.String()
}

func lessKey(a, b calltypes.ExecutorKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
