package opqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned by a second call to Start.
var ErrAlreadyStarted = errors.New("opqueue: already started")

// Logger defines the logging interface used by the Queue.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Operation is one operation group.
type Operation func(ctx context.Context) error

// Completion describes a finished operation.
type Completion struct {
	Name    string
	Waited  time.Duration
	Elapsed time.Duration
	Err     error
}

type job struct {
	name     string
	op       Operation
	enqueued time.Time
}

// Queue is an unbounded FIFO drained by one goroutine.
//
// Thread Safety:
//   - Submit, Pending and Stop are safe for concurrent use.
//   - Operations run on the consumer goroutine only.
type Queue struct {
	logger Logger

	mu      sync.Mutex
	pending []job
	stopped bool
	started bool

	signal chan struct{}

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	onComplete func(Completion)
	callbackMu sync.RWMutex
}

// New creates an idle queue. Call Start to begin consuming.
func New() *Queue {
	return &Queue{
		logger: noopLogger{},
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the queue.
func (q *Queue) SetLogger(logger Logger) {
	q.logger = logger
}

// SetOnComplete sets a callback invoked on the consumer goroutine after
// each operation.
func (q *Queue) SetOnComplete(callback func(Completion)) {
	q.callbackMu.Lock()
	q.onComplete = callback
	q.callbackMu.Unlock()
}

// Submit appends op to the queue. It never blocks. Operations submitted
// after Stop are dropped with a warning.
func (q *Queue) Submit(name string, op Operation) {
	if op == nil {
		return
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.logger.Warn("operation submitted after stop, dropping", "operation", name)
		return
	}
	q.pending = append(q.pending, job{name: name, op: op, enqueued: time.Now()})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pending returns the number of operations waiting to run.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the consumer goroutine. Operations receive a context that
// is cancelled when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return ErrAlreadyStarted
	}
	q.started = true
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mu.Unlock()

	go q.run(runCtx)
	return nil
}

// Stop cancels the running operation, waits for the consumer to exit and
// discards operations that never started. It is safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		cancel, started := q.cancel, q.started
		q.mu.Unlock()

		if !started {
			return
		}
		cancel()
		<-q.done

		q.mu.Lock()
		dropped := len(q.pending)
		q.pending = nil
		q.mu.Unlock()

		if dropped > 0 {
			q.logger.Warn("operation queue stopped with pending operations", "dropped", dropped)
		}
	})
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)

	for {
		j, ok := q.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}
		q.execute(ctx, j)
	}
}

func (q *Queue) next() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return job{}, false
	}
	j := q.pending[0]
	q.pending[0] = job{}
	q.pending = q.pending[1:]
	return j, true
}

func (q *Queue) execute(ctx context.Context, j job) {
	start := time.Now()
	err := q.invoke(ctx, j)

	c := Completion{
		Name:    j.name,
		Waited:  start.Sub(j.enqueued),
		Elapsed: time.Since(start),
		Err:     err,
	}
	if err != nil {
		q.logger.Error("operation failed", "operation", j.name, "elapsed", c.Elapsed, "error", err)
	} else {
		q.logger.Debug("operation completed", "operation", j.name, "elapsed", c.Elapsed)
	}

	q.callbackMu.RLock()
	callback := q.onComplete
	q.callbackMu.RUnlock()
	if callback != nil {
		callback(c)
	}
}

// invoke runs the operation, turning a panic into an error.
func (q *Queue) invoke(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", j.name, r)
		}
	}()
	return j.op(ctx)
}
