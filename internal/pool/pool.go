package pool

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Unlimited can be used as MaxSize for a pool with no upper bound.
const Unlimited = int(^uint32(0) >> 1)

const defaultGracefulStopTimeout = 5 * time.Second

// Outcome is the terminal state of a submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// SubmissionCallback is called when a submission reaches a terminal state on
// an executor, with its outcome and execution duration.
type SubmissionCallback func(outcome Outcome, duration time.Duration)

// Config holds the pool's sizing parameters and optional hooks.
type Config struct {
	// MinSize is the minimum number of executors kept alive. Must be >= 0.
	MinSize int

	// MaxSize bounds the number of executors. Must be >= 1 and >= MinSize.
	MaxSize int

	// ReserveSize is the number of idle executors the pool keeps warm to
	// hide spawn latency. Must be between 0 and MaxSize.
	ReserveSize int

	// KeepAlive is how long an executor above MinSize may sit idle before
	// it is retired. Zero retires eligible executors immediately.
	KeepAlive time.Duration

	// GracefulStopTimeout bounds how long a stopping executor waits for its
	// process to exit before killing it. Defaults to 5 seconds.
	GracefulStopTimeout time.Duration

	// Logger for pool operations. If nil, uses slog.Default().
	Logger *slog.Logger

	// OnExecutorStateChange is called on every executor state transition
	// (optional).
	OnExecutorStateChange StateChangeCallback

	// OnSubmissionComplete is called when a submission finishes executing
	// (optional).
	OnSubmissionComplete SubmissionCallback
}

// Stats is a consistent snapshot of the pool's counters.
type Stats struct {
	Total       int
	Idle        int
	Active      int
	Starting    int
	QueueDepth  int
	MinSize     int
	MaxSize     int
	ReserveSize int
}

// Pool maintains a set of executors between MinSize and MaxSize, dispatches
// submissions to idle executors in FIFO order and keeps ReserveSize idle
// executors warm. Multiple pools may coexist independently.
type Pool struct {
	factory       ManagerFactory
	logger        *slog.Logger
	onStateChange StateChangeCallback
	onSubmission  SubmissionCallback
	keepAlive     time.Duration
	graceful      time.Duration

	queue *submissionQueue

	mu          sync.Mutex
	minSize     int
	maxSize     int
	reserveSize int
	executors   map[string]*Executor
	idle        int
	active      int
	starting    int
	seq         int
	shutDown    bool

	wg         sync.WaitGroup
	terminated chan struct{}
	termOnce   sync.Once
}

// New creates a pool and blocks until max(MinSize, ReserveSize) executors are
// idle. Parameter violations are reported before any process is spawned.
func New(factory ManagerFactory, cfg Config) (*Pool, error) {
	if factory == nil {
		return nil, fmt.Errorf("manager factory is required")
	}
	if err := validateSizes(cfg.MinSize, cfg.MaxSize, cfg.ReserveSize); err != nil {
		return nil, err
	}
	if cfg.KeepAlive < 0 {
		return nil, fmt.Errorf("keep-alive must not be negative, got %v", cfg.KeepAlive)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	graceful := cfg.GracefulStopTimeout
	if graceful <= 0 {
		graceful = defaultGracefulStopTimeout
	}

	p := &Pool{
		factory:       factory,
		logger:        logger,
		onStateChange: cfg.OnExecutorStateChange,
		onSubmission:  cfg.OnSubmissionComplete,
		keepAlive:     cfg.KeepAlive,
		graceful:      graceful,
		queue:         newSubmissionQueue(),
		minSize:       cfg.MinSize,
		maxSize:       cfg.MaxSize,
		reserveSize:   cfg.ReserveSize,
		executors:     make(map[string]*Executor),
		terminated:    make(chan struct{}),
	}

	initial := cfg.MinSize
	if cfg.ReserveSize > initial {
		initial = cfg.ReserveSize
	}

	warming := make([]*Executor, 0, initial)
	p.mu.Lock()
	for i := 0; i < initial; i++ {
		warming = append(warming, p.registerExecutorLocked())
	}
	p.mu.Unlock()

	var g errgroup.Group
	for _, e := range warming {
		g.Go(e.Start)
	}
	if err := g.Wait(); err != nil {
		for _, e := range warming {
			e.Stop(true)
		}
		return nil, fmt.Errorf("pool warmup failed: %w", err)
	}

	p.mu.Lock()
	for _, e := range warming {
		p.idle++
		p.wg.Add(1)
		go p.runExecutor(e)
	}
	p.mu.Unlock()

	p.logger.Info("Pool started", "size", initial, "min", cfg.MinSize, "max", cfg.MaxSize, "reserve", cfg.ReserveSize)
	return p, nil
}

func validateSizes(minSize, maxSize, reserveSize int) error {
	if minSize < 0 {
		return fmt.Errorf("minimum pool size must not be negative, got %d", minSize)
	}
	if maxSize < 1 || maxSize < minSize {
		return fmt.Errorf("maximum pool size must be at least max(1, minimum), got %d", maxSize)
	}
	if reserveSize < 0 || reserveSize > maxSize {
		return fmt.Errorf("reserve size must be between 0 and the maximum pool size, got %d", reserveSize)
	}
	return nil
}

// Submit enqueues a submission and returns its future. If no executor is idle
// and the pool is below its maximum, a new executor is started.
func (p *Pool) Submit(sub *Submission) (*Future, error) {
	return p.submit(sub)
}

// SubmitTerminating is Submit with the submission marked so its process is
// terminated and replaced afterwards.
func (p *Pool) SubmitTerminating(sub *Submission) (*Future, error) {
	if sub != nil {
		sub.terminate = true
	}
	return p.submit(sub)
}

func (p *Pool) submit(sub *Submission) (*Future, error) {
	if sub == nil || len(sub.commands) == 0 {
		return nil, fmt.Errorf("submission must contain at least one command")
	}

	f := newFuture(p, sub)

	p.mu.Lock()
	if p.shutDown {
		p.mu.Unlock()
		return nil, ErrPoolShutDown
	}
	p.mu.Unlock()

	if !p.queue.enqueue(f) {
		return nil, ErrPoolShutDown
	}

	p.mu.Lock()
	if p.idle == 0 && len(p.executors) < p.maxSize && !p.shutDown {
		p.startExecutorLocked()
	}
	p.mu.Unlock()

	return f, nil
}

// runExecutor is the worker loop tied to one executor: it pulls submissions
// off the queue and executes them, retiring the executor when the idle
// keep-alive expires or the pool shuts down.
func (p *Pool) runExecutor(e *Executor) {
	defer p.wg.Done()
	idleCounted := true

	for {
		var timeoutCh <-chan time.Time
		var timer *time.Timer
		if p.retireEligible() {
			timer = time.NewTimer(p.keepAlive)
			timeoutCh = timer.C
		}

		f, ok, timedOut := p.queue.take(timeoutCh)
		if timer != nil {
			timer.Stop()
		}
		if timedOut {
			if p.tryRetire(e) {
				idleCounted = false
				break
			}
			continue
		}
		if !ok {
			// Shutdown initiated and the queue has drained.
			break
		}
		if !f.claimRunning(e) {
			// Cancelled between enqueue and pickup.
			continue
		}

		p.markActive()
		idleCounted = false

		start := time.Now()
		replace := e.Execute(f)
		p.reportSubmission(f, time.Since(start))

		if replace {
			if p.drainedForShutdown() {
				p.markStopped()
				break
			}
			p.logger.Info("Replacing executor process", "executor", e.id)
			if err := e.Restart(); err != nil {
				p.logger.Error("Failed to replace process, retiring executor", "executor", e.id, "error", err)
				p.markStopped()
				p.dropExecutor(e)
				return
			}
		}
		p.markIdle()
		idleCounted = true
	}

	e.Stop(false)
	p.mu.Lock()
	if idleCounted {
		p.idle--
	}
	delete(p.executors, e.id)
	p.mu.Unlock()
	p.logger.Debug("Executor removed", "executor", e.id)
}

// registerExecutorLocked creates an executor and adds it to the registry.
// Callers must hold p.mu and are responsible for starting it.
func (p *Pool) registerExecutorLocked() *Executor {
	p.seq++
	id := fmt.Sprintf("executor-%d", p.seq)
	e := newExecutor(id, p.factory(), p.logger, p.onStateChange, p.graceful)
	p.executors[id] = e
	return e
}

// startExecutorLocked registers a new executor and starts it asynchronously.
// Callers must hold p.mu.
func (p *Pool) startExecutorLocked() {
	e := p.registerExecutorLocked()
	p.starting++
	p.wg.Add(1)
	go func() {
		if err := e.Start(); err != nil {
			p.logger.Error("Failed to start executor", "executor", e.id, "error", err)
			p.mu.Lock()
			p.starting--
			delete(p.executors, e.id)
			lastExecutor := len(p.executors) == 0 && p.starting == 0
			p.mu.Unlock()
			if lastExecutor {
				// Nothing left to serve the queue; fail waiting submissions
				// instead of letting them hang.
				for _, f := range p.queue.drain() {
					f.complete(nil, &ExecutionError{Cause: err})
				}
			}
			p.wg.Done()
			return
		}
		p.mu.Lock()
		p.starting--
		p.idle++
		p.mu.Unlock()
		p.runExecutor(e)
	}()
}

// ensureCapacityLocked grows the pool until the minimum size is met and the
// idle reserve holds, bounded by the maximum size. Callers must hold p.mu.
func (p *Pool) ensureCapacityLocked() {
	for !p.shutDown {
		total := len(p.executors)
		if total < p.minSize {
			p.startExecutorLocked()
			continue
		}
		if p.idle+p.starting < p.reserveSize && total < p.maxSize {
			p.startExecutorLocked()
			continue
		}
		return
	}
}

func (p *Pool) markActive() {
	p.mu.Lock()
	p.idle--
	p.active++
	p.ensureCapacityLocked()
	p.mu.Unlock()
}

func (p *Pool) markIdle() {
	p.mu.Lock()
	p.active--
	p.idle++
	p.mu.Unlock()
}

func (p *Pool) markStopped() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
}

func (p *Pool) dropExecutor(e *Executor) {
	p.mu.Lock()
	delete(p.executors, e.id)
	p.ensureCapacityLocked()
	p.mu.Unlock()
}

// retireEligible reports whether the executor calling it could currently be
// retired, which decides whether its queue wait is bounded by the keep-alive.
func (p *Pool) retireEligible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutDown {
		return false
	}
	total := len(p.executors)
	if total > p.maxSize {
		return true
	}
	return total-1 >= p.minSize && p.idle-1 >= p.reserveSize
}

// tryRetire re-checks the retirement conditions and, if they still hold,
// removes executor e from the idle count and from the registry, so that
// concurrent retirement checks no longer count it while it stops.
func (p *Pool) tryRetire(e *Executor) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutDown {
		return false
	}
	total := len(p.executors)
	if total > p.maxSize {
		p.idle--
		delete(p.executors, e.id)
		return true
	}
	if total-1 < p.minSize || p.idle-1 < p.reserveSize || p.queue.depth() > 0 {
		return false
	}
	p.idle--
	delete(p.executors, e.id)
	return true
}

func (p *Pool) drainedForShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutDown && p.queue.depth() == 0
}

func (p *Pool) reportSubmission(f *Future, duration time.Duration) {
	if p.onSubmission == nil {
		return
	}
	outcome := OutcomeSucceeded
	switch {
	case f.IsCancelled():
		outcome = OutcomeCancelled
	default:
		if _, err := f.Get(); err != nil {
			outcome = OutcomeFailed
		}
	}
	p.onSubmission(outcome, duration)
}

// Shutdown initiates an orderly shutdown: new submissions are rejected, the
// queue drains, and executors stop as they become idle. Idempotent.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.shutDown {
		p.mu.Unlock()
		return
	}
	p.shutDown = true
	p.mu.Unlock()

	p.logger.Info("Pool shutdown initiated")
	p.queue.shutdown()
	p.startTerminationWatcher()
}

// ForceShutdown additionally drains the queue, completing the drained futures
// as cancelled, and returns the submissions that were awaiting execution.
// Submissions already executing are left to finish per their own cancellation
// state.
func (p *Pool) ForceShutdown() []*Submission {
	p.mu.Lock()
	p.shutDown = true
	p.mu.Unlock()

	drained := p.queue.drain()
	p.queue.shutdown()
	p.startTerminationWatcher()

	subs := make([]*Submission, 0, len(drained))
	for _, f := range drained {
		f.complete(nil, ErrCancelled)
		subs = append(subs, f.sub)
	}
	if len(subs) > 0 {
		p.logger.Info("Pool force shutdown, queue drained", "pending", len(subs))
	}
	return subs
}

func (p *Pool) startTerminationWatcher() {
	p.termOnce.Do(func() {
		go func() {
			p.wg.Wait()
			close(p.terminated)
			p.logger.Info("Pool terminated")
		}()
	})
}

// IsShutDown reports whether shutdown has been initiated.
func (p *Pool) IsShutDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutDown
}

// IsTerminated reports whether the pool has shut down with every executor
// stopped.
func (p *Pool) IsTerminated() bool {
	select {
	case <-p.terminated:
		return true
	default:
		return false
	}
}

// AwaitTermination blocks until the pool is terminated or the timeout elapses,
// reporting whether termination was reached.
func (p *Pool) AwaitTermination(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.terminated:
		return true
	case <-timer.C:
		return false
	}
}

// Stats returns a consistent snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Total:       len(p.executors),
		Idle:        p.idle,
		Active:      p.active,
		Starting:    p.starting,
		QueueDepth:  p.queue.depth(),
		MinSize:     p.minSize,
		MaxSize:     p.maxSize,
		ReserveSize: p.reserveSize,
	}
}

// ExecutorStates returns the state of every executor, keyed by executor ID.
func (p *Pool) ExecutorStates() map[string]ExecutorState {
	p.mu.Lock()
	executors := make([]*Executor, 0, len(p.executors))
	for _, e := range p.executors {
		executors = append(executors, e)
	}
	p.mu.Unlock()

	states := make(map[string]ExecutorState, len(executors))
	for _, e := range executors {
		states[e.id] = e.State()
	}
	return states
}

// Resize updates the pool's sizing parameters at runtime. Growth to honor the
// new minimum or reserve happens immediately; shrinking happens through the
// idle keep-alive. An executor that was already waiting for work without a
// keep-alive bound when the sizes changed starts its keep-alive only after it
// next runs a submission.
func (p *Pool) Resize(minSize, maxSize, reserveSize int) error {
	if err := validateSizes(minSize, maxSize, reserveSize); err != nil {
		return err
	}
	p.mu.Lock()
	if p.shutDown {
		p.mu.Unlock()
		return ErrPoolShutDown
	}
	p.minSize, p.maxSize, p.reserveSize = minSize, maxSize, reserveSize
	p.ensureCapacityLocked()
	p.mu.Unlock()
	p.logger.Info("Pool resized", "min", minSize, "max", maxSize, "reserve", reserveSize)
	return nil
}
