// Copyright 2025 Certen Protocol
//
// BatchesManager turns an interleaved stream of manual call requests and
// block announcements into a totally-ordered, gap-free sequence of
// batches. Shaped like a Collector — a sync.RWMutex-guarded struct fed by
// independent producers (here: chain blocks and manual calls) that hands
// off fully-formed units of work to a FIFO a consumer drains — generalized
// with one thing a plain collector never needs: a block may not close a
// batch until a speculative VM evaluation of its automatic trigger has
// actually completed, so closing is gated on an asynchronous result rather
// than a wall-clock timer.

package batchesmanager

import (
	"context"
	"crypto/sha256"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/certen/contract-executor/pkg/calltypes"
	"github.com/certen/contract-executor/pkg/metrics"
)

// AutomaticEvaluator runs the speculative VM call that decides whether an
// automatic execution should fire at the given closing block height.
type AutomaticEvaluator func(ctx context.Context, blockHeight uint64) (bool, error)

// Config configures a Manager.
type Config struct {
	Logger *log.Logger

	// Metrics is optional; a nil Metrics disables instrumentation.
	Metrics *metrics.Metrics
	// ContractLabel is the metrics label value for this contract; defaults
	// to empty when Metrics is nil.
	ContractLabel string

	// Evaluator is the speculative automatic-trigger VM call. Required.
	Evaluator AutomaticEvaluator

	// BackoffInitial/BackoffMax bound the retry delay used while the
	// evaluator reports the VM unavailable; retries themselves are
	// unbounded in count, only in delay: no batch closes until a result
	// is obtained.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(evaluator AutomaticEvaluator) *Config {
	return &Config{
		Logger:         log.New(os.Stdout, "[BatchesManager] ", log.LstdFlags),
		Evaluator:      evaluator,
		BackoffInitial: 200 * time.Millisecond,
		BackoffMax:     30 * time.Second,
	}
}

// Manager is a single contract's BatchesManager.
type Manager struct {
	mu sync.RWMutex

	logger        *log.Logger
	evaluator     AutomaticEvaluator
	metrics       *metrics.Metrics
	contractLabel string
	backoffInitial time.Duration
	backoffMax     time.Duration

	pendingManual []calltypes.CallRequest
	seenCallIDs   map[calltypes.CallId]struct{}

	observedHeights     []uint64
	haveObservedAny     bool
	highestObserved     uint64
	haveProcessedAny    bool
	lastProcessedHeight uint64

	automaticEnabledSince *uint64
	unmodifiableUpTo      uint64

	nextBatchIndex uint64
	evalResults    map[uint64]bool
	evalPending    map[uint64]struct{}

	emitted        []calltypes.Batch
	emittedByIndex map[uint64]calltypes.Batch

	ready chan struct{}

	sf singleflight.Group

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Manager. cfg.Evaluator must be set.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.Evaluator == nil {
		return nil, ErrNilEvaluator
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[BatchesManager] ", log.LstdFlags)
	}
	backoffInitial := cfg.BackoffInitial
	if backoffInitial <= 0 {
		backoffInitial = 200 * time.Millisecond
	}
	backoffMax := cfg.BackoffMax
	if backoffMax <= 0 {
		backoffMax = 30 * time.Second
	}

	return &Manager{
		logger:         logger,
		evaluator:      cfg.Evaluator,
		metrics:        cfg.Metrics,
		contractLabel:  cfg.ContractLabel,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
		nextBatchIndex: 1,
		seenCallIDs:    make(map[calltypes.CallId]struct{}),
		evalResults:    make(map[uint64]bool),
		evalPending:    make(map[uint64]struct{}),
		emittedByIndex: make(map[uint64]calltypes.Batch),
		ready:          make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
	}, nil
}

// Ready is signalled whenever a new batch becomes available via NextBatch.
// It is a level-style notification, not a queue: callers should drain it
// and then re-check HasNextBatch/NextBatch in a loop rather than assuming
// one signal means exactly one batch.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

func (m *Manager) signalReadyLocked() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Stop signals any in-flight background evaluations to abandon retrying
// once their current attempt returns.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
}

// AddManualCall enqueues req in arrival order. Duplicate call IDs are
// idempotent no-ops; calls referencing a block already frozen by
// SetUnmodifiableUpTo fail silently.
func (m *Manager) AddManualCall(req calltypes.CallRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seenCallIDs[req.CallId]; dup {
		return nil
	}
	if req.BlockHeight < m.unmodifiableUpTo {
		return nil
	}

	m.seenCallIDs[req.CallId] = struct{}{}
	m.pendingManual = append(m.pendingManual, req)
	m.tryAdvanceLocked()
	return nil
}

// AddBlock records a newly observed block height. Heights must arrive
// strictly increasing.
func (m *Manager) AddBlock(h uint64) error {
	m.mu.Lock()
	if m.haveObservedAny && h <= m.highestObserved {
		m.mu.Unlock()
		return ErrNonMonotonicBlock
	}
	m.observedHeights = append(m.observedHeights, h)
	m.haveObservedAny = true
	m.highestObserved = h
	m.tryAdvanceLocked()
	m.mu.Unlock()
	return nil
}

// SetAutomaticExecutionsEnabledSince enables automatic executions for
// blocks >= *h, or disables them entirely if h is nil. The change is
// never applied retroactively to blocks already frozen.
func (m *Manager) SetAutomaticExecutionsEnabledSince(h *uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		m.automaticEnabledSince = nil
	} else {
		v := *h
		m.automaticEnabledSince = &v
	}
	m.tryAdvanceLocked()
}

// SetUnmodifiableUpTo freezes batch-formation decisions for all blocks
// below h. Manual calls with a block height < h are dropped silently from
// then on.
func (m *Manager) SetUnmodifiableUpTo(h uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h > m.unmodifiableUpTo {
		m.unmodifiableUpTo = h
	}
}

// CancelBatchesTill drops queued batches with BatchIndex < idx, forgets
// every batch already issued below idx (IsBatchValid reports false for
// them), and reindexes future emission to resume at idx, used when the
// chain has synchronized the drive past this point.
func (m *Manager) CancelBatchesTill(idx uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.emitted[:0]
	for _, b := range m.emitted {
		if b.BatchIndex >= idx {
			kept = append(kept, b)
		} else {
			delete(m.emittedByIndex, b.BatchIndex)
		}
	}
	m.emitted = kept
	for index := range m.emittedByIndex {
		if index < idx {
			delete(m.emittedByIndex, index)
		}
	}

	if m.nextBatchIndex < idx {
		m.nextBatchIndex = idx
	}
}

// DelayBatch returns a previously issued batch to the head of the queue
// for retry, preserving its BatchIndex.
func (m *Manager) DelayBatch(batch calltypes.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitted = append([]calltypes.Batch{batch}, m.emitted...)
	m.emittedByIndex[batch.BatchIndex] = batch
}

// HasNextBatch reports whether a batch is ready to be pulled.
func (m *Manager) HasNextBatch() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.emitted) > 0
}

// NextBatch pulls the next ready batch. It returns ErrNoBatchReady if none
// is ready.
func (m *Manager) NextBatch() (calltypes.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.emitted) == 0 {
		return calltypes.Batch{}, ErrNoBatchReady
	}
	batch := m.emitted[0]
	m.emitted = m.emitted[1:]
	return batch, nil
}

// IsBatchValid reports whether batch's membership and index still match
// what the manager would currently emit for that index.
func (m *Manager) IsBatchValid(batch calltypes.Batch) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	current, ok := m.emittedByIndex[batch.BatchIndex]
	if !ok {
		return false
	}
	currentEncoded := current.Encode()
	candidateEncoded := batch.Encode()
	if len(currentEncoded) != len(candidateEncoded) {
		return false
	}
	for i := range currentEncoded {
		if currentEncoded[i] != candidateEncoded[i] {
			return false
		}
	}
	return true
}

// tryAdvanceLocked walks observed block heights in order, closing batches
// as far as available automatic-evaluation results allow. Callers must
// hold m.mu.
func (m *Manager) tryAdvanceLocked() {
	for {
		h, ok := m.nextUncheckedHeightLocked()
		if !ok {
			return
		}

		enabled := m.automaticEnabledSince != nil && h >= *m.automaticEnabledSince
		var fires bool
		if enabled {
			result, known := m.evalResults[h]
			if !known {
				m.scheduleEvaluation(h)
				return
			}
			fires = result
		}

		manuals := m.pullPendingManualsUpToLocked(h)
		m.lastProcessedHeight = h
		m.haveProcessedAny = true

		if len(manuals) == 0 && !fires {
			continue
		}

		calls := manuals
		if fires {
			calls = append(calls, m.automaticCallRequest(m.nextBatchIndex, len(manuals), h))
		}
		batch := calltypes.Batch{
			BatchIndex:           m.nextBatchIndex,
			AutomaticCheckedUpTo: h,
			CallRequests:         calls,
		}
		m.nextBatchIndex++
		m.emitted = append(m.emitted, batch)
		m.emittedByIndex[batch.BatchIndex] = batch
		if m.metrics != nil {
			m.metrics.BatchesFormed.WithLabelValues(m.contractLabel).Inc()
		}
		m.signalReadyLocked()
	}
}

func (m *Manager) nextUncheckedHeightLocked() (uint64, bool) {
	for _, h := range m.observedHeights {
		if m.haveProcessedAny && h <= m.lastProcessedHeight {
			continue
		}
		return h, true
	}
	return 0, false
}

// pullPendingManualsUpToLocked removes every pending manual call whose
// block height has now closed and returns them ordered by
// (block_height, arrival_order): the stable sort leaves equal-height calls
// in the order AddManualCall queued them, but a call queued early for a
// later height never jumps ahead of one queued later for an earlier
// height that closes in the same batch.
func (m *Manager) pullPendingManualsUpToLocked(h uint64) []calltypes.CallRequest {
	var taken []calltypes.CallRequest
	remaining := m.pendingManual[:0]
	for _, req := range m.pendingManual {
		if req.BlockHeight <= h {
			taken = append(taken, req)
		} else {
			remaining = append(remaining, req)
		}
	}
	m.pendingManual = remaining
	sort.SliceStable(taken, func(i, j int) bool {
		return taken[i].BlockHeight < taken[j].BlockHeight
	})
	return taken
}

// automaticCallRequest builds the deterministic automatic call for
// position `position` within batch `batchIndex`: a deterministic hash of
// (batch_index, position).
func (m *Manager) automaticCallRequest(batchIndex uint64, position int, closingHeight uint64) calltypes.CallRequest {
	hasher := sha256.New()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(batchIndex >> (8 * i))
	}
	pos := uint64(position)
	for i := 0; i < 8; i++ {
		buf[8+i] = byte(pos >> (8 * i))
	}
	hasher.Write(buf[:])
	var callID calltypes.CallId
	copy(callID[:], hasher.Sum(nil))

	return calltypes.CallRequest{
		CallId:      callID,
		Kind:        calltypes.CallKindAutomatic,
		BlockHeight: closingHeight,
	}
}

// scheduleEvaluation starts (or joins, via singleflight) a background
// evaluation of height h, retrying with capped exponential backoff while
// the evaluator reports the VM unavailable. Called with m.mu already held
// by tryAdvanceLocked; the spawned goroutine re-acquires it independently
// once a result is ready.
func (m *Manager) scheduleEvaluation(h uint64) {
	if _, pending := m.evalPending[h]; pending {
		return
	}
	m.evalPending[h] = struct{}{}

	key := formatHeightKey(h)
	go func() {
		delay := m.backoffInitial
		for {
			select {
			case <-m.stopCh:
				return
			default:
			}

			resultIface, err, _ := m.sf.Do(key, func() (interface{}, error) {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return m.evaluator(ctx, h)
			})
			if err == nil {
				result := resultIface.(bool)
				m.mu.Lock()
				delete(m.evalPending, h)
				m.evalResults[h] = result
				m.tryAdvanceLocked()
				m.mu.Unlock()
				return
			}

			m.logger.Printf("automatic evaluator unavailable at height %d, retrying in %s: %v", h, delay, err)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-m.stopCh:
				timer.Stop()
				return
			}
			delay *= 2
			if delay > m.backoffMax {
				delay = m.backoffMax
			}
		}
	}()
}

func formatHeightKey(h uint64) string {
	const hexDigits = "0123456789abcdef"
	if h == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for h > 0 {
		i--
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf[i:])
}
