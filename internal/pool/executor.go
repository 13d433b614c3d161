package pool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ExecutorState represents the current state of an executor.
type ExecutorState string

// Executor states.
const (
	StateStarting  ExecutorState = "starting"  // Spawning its process
	StateIdle      ExecutorState = "idle"      // Ready for a submission
	StateExecuting ExecutorState = "executing" // Running a submission
	StateStopping  ExecutorState = "stopping"  // Terminating its process
	StateStopped   ExecutorState = "stopped"   // No process
)

// StateChangeCallback is called when an executor's state changes.
// Used for domain-specific reactions (events, metrics).
type StateChangeCallback func(id string, oldState, newState ExecutorState)

// cmdSignal is sent by a reader goroutine when a predicate completes or fails
// the command it was invoked for. Signals are tagged with the command so late
// arrivals for a previous command are ignored.
type cmdSignal struct {
	cmd *Command
	err error
}

// runningProc bundles one spawned process with its stdin writer and its exit
// notification. exitCh is closed, after exitCode is recorded, once both output
// streams hit EOF and the process has been reaped.
type runningProc struct {
	proc     Process
	stdin    io.WriteCloser
	exitCh   chan struct{}
	exitCode int
}

// Executor owns one child process at a time and executes one submission at a
// time on it. It is created by the pool controller and keeps its slot across
// process replacements.
type Executor struct {
	id              string
	manager         ProcessManager
	logger          *slog.Logger
	onStateChange   StateChangeCallback
	gracefulTimeout time.Duration
	killTimeout     time.Duration

	mu        sync.Mutex
	state     ExecutorState
	rp        *runningProc
	current   *Future
	activeCmd *Command

	signals chan cmdSignal

	executions   int
	totalRuntime time.Duration
}

func newExecutor(id string, manager ProcessManager, logger *slog.Logger, onStateChange StateChangeCallback, gracefulTimeout time.Duration) *Executor {
	return &Executor{
		id:              id,
		manager:         manager,
		logger:          logger,
		onStateChange:   onStateChange,
		gracefulTimeout: gracefulTimeout,
		killTimeout:     5 * time.Second,
		state:           StateStopped,
		signals:         make(chan cmdSignal, 16),
	}
}

// ID returns the executor's identifier within its pool.
func (e *Executor) ID() string {
	return e.id
}

// State returns the executor's current state.
func (e *Executor) State() ExecutorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Executions returns how many submissions the current process has run.
func (e *Executor) Executions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executions
}

// Start spawns the executor's process via its manager, runs the manager's
// startup submission if any, and transitions to idle.
func (e *Executor) Start() error {
	e.setState(StateStarting)

	proc, err := e.manager.Spawn()
	if err != nil {
		e.setState(StateStopped)
		return fmt.Errorf("failed to spawn process: %w", err)
	}

	rp := &runningProc{proc: proc, stdin: proc.Stdin(), exitCh: make(chan struct{})}
	e.mu.Lock()
	e.rp = rp
	e.executions = 0
	e.totalRuntime = 0
	e.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		e.readStream(proc.Stdout(), false)
	}()
	go func() {
		defer readers.Done()
		e.readStream(proc.Stderr(), true)
	}()

	// Reap the process once both streams hit EOF.
	go func() {
		readers.Wait()
		rp.exitCode = exitCodeFromError(proc.Wait())
		close(rp.exitCh)
		e.manager.OnTermination(rp.exitCode)
		e.logger.Debug("Process exited", "executor", e.id, "exit_code", rp.exitCode)
	}()

	if su := e.manager.StartupSubmission(); su != nil {
		if err := e.run(rp, su, nil); err != nil {
			e.logger.Error("Startup submission failed", "executor", e.id, "error", err)
			e.Stop(true)
			return fmt.Errorf("startup submission failed: %w", err)
		}
	}
	e.manager.OnStartup(proc)

	e.setState(StateIdle)
	return nil
}

// Execute runs one submission on the executor's process, blocking until the
// submission ends or the executor is stopped. The submission's future is
// signaled exactly once. The return value reports whether the process must be
// replaced before the executor can take another submission.
func (e *Executor) Execute(f *Future) (replace bool) {
	e.mu.Lock()
	if e.state != StateIdle || e.rp == nil {
		e.mu.Unlock()
		f.complete(nil, &ExecutionError{Cause: ErrStopped})
		return false
	}
	rp := e.rp
	e.current = f
	e.state = StateExecuting
	e.mu.Unlock()
	e.notify(StateIdle, StateExecuting)

	start := time.Now()
	runErr := e.run(rp, f.sub, f)
	elapsed := time.Since(start)

	e.mu.Lock()
	e.current = nil
	e.executions++
	e.totalRuntime += elapsed
	executions, totalRuntime := e.executions, e.totalRuntime
	e.mu.Unlock()

	// An interrupt may have killed the process even if the run itself
	// finished cleanly, so it always forces a replacement.
	replace = runErr != nil || f.wasInterrupted() || f.sub.TerminatesProcess() ||
		!e.manager.KeepAlive(executions, totalRuntime)

	switch {
	case runErr == nil:
		f.complete(f.sub.Result(), nil)
	case errors.Is(runErr, ErrCancelled):
		// Cancel already completed the future; this is a no-op safeguard.
		f.complete(nil, ErrCancelled)
	default:
		e.logger.Warn("Submission failed", "executor", e.id, "error", runErr)
		f.complete(nil, &ExecutionError{Cause: runErr})
	}

	if !replace {
		e.setState(StateIdle)
	}
	return replace
}

// run executes one submission on the given process. A nil future is used for
// the manager's internal startup and termination submissions.
func (e *Executor) run(rp *runningProc, sub *Submission, f *Future) error {
	e.drainSignals()

	var interrupt <-chan struct{}
	if f != nil {
		interrupt = f.interrupt
	}

	if sub.onStart != nil {
		sub.onStart(rp.proc)
	}

	for _, cmd := range sub.commands {
		cmd.reset()
		if cmd.GeneratesOutput() {
			e.setActive(cmd)
		}
		if _, err := io.WriteString(rp.stdin, cmd.Instruction()+"\n"); err != nil {
			e.setActive(nil)
			select {
			case <-interrupt:
				return ErrCancelled
			default:
			}
			return fmt.Errorf("failed to write instruction: %w", err)
		}
		if !cmd.GeneratesOutput() {
			continue
		}
		err := e.awaitCommand(cmd, rp, interrupt)
		e.setActive(nil)
		if err != nil {
			return err
		}
	}

	if sub.onFinish != nil {
		sub.onFinish()
	}
	return nil
}

// awaitCommand blocks until a reader goroutine reports the command complete or
// failed, the process exits, or the submission is interrupted.
func (e *Executor) awaitCommand(cmd *Command, rp *runningProc, interrupt <-chan struct{}) error {
	for {
		select {
		case sig := <-e.signals:
			if sig.cmd != cmd {
				continue
			}
			return sig.err
		case <-rp.exitCh:
			return &processExitError{exitCode: rp.exitCode}
		case <-interrupt:
			_ = rp.proc.Kill()
			return ErrCancelled
		}
	}
}

// readStream reads one output stream line by line. Lines are fed to the active
// command's predicate when that command claims the stream; otherwise they are
// discarded.
func (e *Executor) readStream(r io.Reader, stderrStream bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()

		e.mu.Lock()
		cmd := e.activeCmd
		e.mu.Unlock()
		if cmd == nil || !cmd.GeneratesOutput() {
			continue
		}

		done, err := cmd.consumeLine(line, stderrStream)
		if err != nil {
			e.sendSignal(cmd, err)
		} else if done {
			e.sendSignal(cmd, nil)
		}
	}
	if err := scanner.Err(); err != nil {
		e.logger.Debug("Output stream closed", "executor", e.id, "error", err)
	}
}

// Stop terminates the executor's process. A graceful stop runs the manager's
// termination submission, closes stdin and waits for the process to exit up to
// the grace deadline before killing it. A forcible stop kills outright.
// Idempotent.
func (e *Executor) Stop(force bool) {
	e.mu.Lock()
	if e.state == StateStopping || e.state == StateStopped {
		e.mu.Unlock()
		return
	}
	rp := e.rp
	e.rp = nil
	prev := e.state
	e.state = StateStopping
	e.mu.Unlock()
	e.notify(prev, StateStopping)

	if rp != nil {
		if force {
			_ = rp.proc.Kill()
		} else if ts := e.manager.TerminationSubmission(); ts != nil {
			if err := e.run(rp, ts, nil); err != nil {
				e.logger.Warn("Termination submission failed", "executor", e.id, "error", err)
			}
		}
		_ = rp.stdin.Close()

		timer := time.NewTimer(e.gracefulTimeout)
		select {
		case <-rp.exitCh:
			timer.Stop()
		case <-timer.C:
			e.logger.Warn("Graceful stop timeout, forcing kill", "executor", e.id, "timeout", e.gracefulTimeout)
			_ = rp.proc.Kill()
			killTimer := time.NewTimer(e.killTimeout)
			select {
			case <-rp.exitCh:
				killTimer.Stop()
			case <-killTimer.C:
				e.logger.Error("Process did not exit after kill signal", "executor", e.id)
			}
		}
	}

	e.setState(StateStopped)
}

// Restart replaces the executor's process: a graceful stop followed by a fresh
// start, reusing the executor slot.
func (e *Executor) Restart() error {
	e.Stop(false)
	return e.Start()
}

// interruptExecution kills the process if f is the submission currently
// executing. Called from Future.Cancel; the kill unblocks both the command
// wait and any blocked stdin write.
func (e *Executor) interruptExecution(f *Future) {
	e.mu.Lock()
	rp := e.rp
	current := e.current
	e.mu.Unlock()
	if current != f || rp == nil {
		return
	}
	e.logger.Debug("Interrupting execution", "executor", e.id)
	_ = rp.proc.Kill()
}

func (e *Executor) setActive(cmd *Command) {
	e.mu.Lock()
	e.activeCmd = cmd
	e.mu.Unlock()
}

func (e *Executor) sendSignal(cmd *Command, err error) {
	select {
	case e.signals <- cmdSignal{cmd: cmd, err: err}:
	default:
		e.logger.Warn("Dropping command signal, channel full", "executor", e.id)
	}
}

// drainSignals discards signals left over from a previous submission.
func (e *Executor) drainSignals() {
	for {
		select {
		case <-e.signals:
		default:
			return
		}
	}
}

func (e *Executor) setState(newState ExecutorState) {
	e.mu.Lock()
	old := e.state
	e.state = newState
	e.mu.Unlock()
	if old != newState {
		e.notify(old, newState)
	}
}

func (e *Executor) notify(old, newState ExecutorState) {
	e.logger.Debug("Executor state changed", "executor", e.id, "from", string(old), "to", string(newState))
	if e.onStateChange != nil {
		e.onStateChange(e.id, old, newState)
	}
}
