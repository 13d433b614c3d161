package pool

import (
	"sync"
	"time"
)

type futureState int

const (
	futurePending futureState = iota // queued, not yet picked up
	futureRunning                    // owned by an executor
	futureDone                       // terminal
)

// Future is the cancellable, awaitable handle returned from Submit. It
// transitions monotonically from pending to exactly one of succeeded, failed
// or cancelled, and is signaled exactly once.
type Future struct {
	pool *Pool
	sub  *Submission

	mu          sync.Mutex
	state       futureState
	executor    *Executor
	cancelled   bool
	interrupted bool
	result      any
	err         error

	done      chan struct{}
	interrupt chan struct{}
}

func newFuture(p *Pool, sub *Submission) *Future {
	return &Future{
		pool:      p,
		sub:       sub,
		done:      make(chan struct{}),
		interrupt: make(chan struct{}),
	}
}

// Submission returns the submission this future tracks.
func (f *Future) Submission() *Submission {
	return f.sub
}

// Done returns a channel closed when the submission reaches a terminal state.
// It allows select-based waiting alongside Get.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the submission reached a terminal state.
func (f *Future) IsDone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == futureDone
}

// IsCancelled reports whether the submission was cancelled.
func (f *Future) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Get blocks until the submission is terminal and returns its result. It
// returns ErrCancelled for cancelled submissions and an *ExecutionError for
// failed ones.
func (f *Future) Get() (any, error) {
	<-f.done
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

// GetWithTimeout is Get bounded by d. On expiry it returns ErrTimeout without
// affecting the submission.
func (f *Future) GetWithTimeout(d time.Duration) (any, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// Cancel attempts to cancel the submission. A queued submission is removed
// from the queue and completed as cancelled. An executing submission is
// cancelled only if mayInterrupt is set, in which case the owning executor's
// process is torn down and replaced. Cancel returns false once the submission
// is terminal, so a second call after a successful one returns false.
func (f *Future) Cancel(mayInterrupt bool) bool {
	f.mu.Lock()
	if f.state == futureDone {
		f.mu.Unlock()
		return false
	}
	if f.state == futurePending {
		f.mu.Unlock()
		if f.pool.queue.remove(f) {
			f.complete(nil, ErrCancelled)
			return true
		}
		// Lost the race with a worker picking it up; re-evaluate as running.
		f.mu.Lock()
		if f.state == futureDone {
			f.mu.Unlock()
			return false
		}
	}
	if !mayInterrupt {
		f.mu.Unlock()
		return false
	}
	if !f.interrupted {
		f.interrupted = true
		close(f.interrupt)
	}
	ex := f.executor
	f.mu.Unlock()

	f.complete(nil, ErrCancelled)
	if ex != nil {
		ex.interruptExecution(f)
	}
	return true
}

// claimRunning marks the future as owned by executor e. It returns false if
// the future was cancelled before the claim, in which case the executor must
// not run it.
func (f *Future) claimRunning(e *Executor) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != futurePending || f.interrupted {
		return false
	}
	f.state = futureRunning
	f.executor = e
	return true
}

// wasInterrupted reports whether interrupt-cancellation was requested.
func (f *Future) wasInterrupted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interrupted
}

// complete transitions the future to its terminal state. Only the first call
// has any effect.
func (f *Future) complete(result any, err error) {
	f.mu.Lock()
	if f.state == futureDone {
		f.mu.Unlock()
		return
	}
	f.state = futureDone
	f.executor = nil
	f.result = result
	f.err = err
	if err == ErrCancelled {
		f.cancelled = true
	}
	close(f.done)
	f.mu.Unlock()
}
