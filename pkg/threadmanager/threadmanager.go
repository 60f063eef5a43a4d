// Copyright 2025 Certen Protocol
//
// ThreadManager enforces a single logical thread of execution: every
// BatchesManager and BatchExecutionTask method body runs exclusively on one
// dedicated goroutine, so two pieces of core logic never race even though
// VM, storage, messenger and timer callbacks all arrive asynchronously.
//
// Grounded on pkg/batch/scheduler.go's stopCh/doneCh/time.Timer shape,
// generalized from a single periodic timer into a generic posted-closure
// queue, with every callback funneled through one execute() call.

package threadmanager

import (
	"log"
	"os"
	"sync"
	"time"
)

// Config configures a ThreadManager the way a background-loop Config
// struct usually does: an optional logger and a queue depth past which
// Post blocks the caller rather than growing unbounded.
type Config struct {
	Logger   *log.Logger
	QueueLen int
}

// DefaultConfig returns sensible defaults: a queue of 256 pending closures
// and a logger prefixed the way every component in this process is.
func DefaultConfig() *Config {
	return &Config{
		Logger:   log.New(os.Stdout, "[ThreadManager] ", log.LstdFlags),
		QueueLen: 256,
	}
}

// CancelFunc cancels a previously scheduled delayed post. Calling it after
// the post has already run is a harmless no-op.
type CancelFunc func()

type timerTask struct {
	timer     *time.Timer
	cancelled bool
	mu        sync.Mutex
}

func (t *timerTask) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	t.timer.Stop()
}

// ThreadManager runs posted closures one at a time, in the order they were
// posted, on a single background goroutine.
type ThreadManager struct {
	config *Config
	logger *log.Logger

	queue  chan func()
	stopCh chan struct{}
	doneCh chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a ThreadManager and immediately starts its background
// goroutine.
func New(config *Config) *ThreadManager {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[ThreadManager] ", log.LstdFlags)
	}
	queueLen := config.QueueLen
	if queueLen <= 0 {
		queueLen = 256
	}

	tm := &ThreadManager{
		config: config,
		logger: logger,
		queue:  make(chan func(), queueLen),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	tm.start()
	return tm
}

func (tm *ThreadManager) start() {
	tm.startOnce.Do(func() {
		go tm.run()
	})
}

func (tm *ThreadManager) run() {
	defer close(tm.doneCh)
	for {
		select {
		case fn := <-tm.queue:
			tm.safeCall(fn)
		case <-tm.stopCh:
			// Drain whatever is already queued before exiting, so a Stop
			// racing with a handler's own Post doesn't silently drop work
			// the handler already committed to.
			for {
				select {
				case fn := <-tm.queue:
					tm.safeCall(fn)
				default:
					return
				}
			}
		}
	}
}

func (tm *ThreadManager) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			tm.logger.Printf("recovered panic in posted closure: %v", r)
		}
	}()
	fn()
}

// Post schedules fn to run on the thread manager's goroutine. It never
// blocks the calling goroutine on fn's execution; it may block briefly if
// the internal queue is full.
func (tm *ThreadManager) Post(fn func()) {
	tm.queue <- fn
}

// PostDelayed schedules fn to run after d has elapsed. The returned
// CancelFunc cancels the pending post if called before it fires.
func (tm *ThreadManager) PostDelayed(d time.Duration, fn func()) CancelFunc {
	task := &timerTask{}
	task.timer = time.AfterFunc(d, func() {
		task.mu.Lock()
		cancelled := task.cancelled
		task.mu.Unlock()
		if !cancelled {
			tm.Post(fn)
		}
	})
	return task.cancel
}

// Execute posts fn and blocks until it has run, the synchronous helper
// tests use to drive a mock callback deterministically.
func (tm *ThreadManager) Execute(fn func()) {
	done := make(chan struct{})
	tm.Post(func() {
		fn()
		close(done)
	})
	<-done
}

// Stop signals the background goroutine to drain its queue and exit, then
// waits for it to do so. Stop is idempotent.
func (tm *ThreadManager) Stop() {
	tm.stopOnce.Do(func() {
		close(tm.stopCh)
	})
	<-tm.doneCh
}
