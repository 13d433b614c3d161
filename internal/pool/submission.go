package pool

import "sync"

// Submission is an ordered sequence of commands executed strictly sequentially
// on one process, plus optional lifecycle hooks. A submission lives in the
// queue, then in exactly one executor, and reaches exactly one terminal state:
// succeeded, failed or cancelled.
type Submission struct {
	commands  []*Command
	terminate bool

	onStart  func(p Process)
	onFinish func()

	mu     sync.Mutex
	result any
}

// NewSubmission creates a submission from the given commands.
func NewSubmission(cmds ...*Command) *Submission {
	return &Submission{commands: cmds}
}

// OnStart registers a hook invoked just before the first command is
// dispatched, with the process the submission was assigned to. It returns the
// submission for chaining.
func (s *Submission) OnStart(fn func(p Process)) *Submission {
	s.onStart = fn
	return s
}

// OnFinish registers a hook invoked on normal completion of the last command.
// It returns the submission for chaining.
func (s *Submission) OnFinish(fn func()) *Submission {
	s.onFinish = fn
	return s
}

// Terminating marks the submission so the executor terminates and replaces its
// process after the submission, regardless of outcome.
func (s *Submission) Terminating() *Submission {
	s.terminate = true
	return s
}

// TerminatesProcess reports whether the executing process is terminated after
// this submission.
func (s *Submission) TerminatesProcess() bool {
	return s.terminate
}

// Commands returns the submission's commands in execution order.
func (s *Submission) Commands() []*Command {
	out := make([]*Command, len(s.commands))
	copy(out, s.commands)
	return out
}

// SetResult stores the value published through the submission's Future on
// success. Typically called from an OnFinish hook.
func (s *Submission) SetResult(v any) {
	s.mu.Lock()
	s.result = v
	s.mu.Unlock()
}

// Result returns the value stored with SetResult, or nil.
func (s *Submission) Result() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
