package pool

import (
	"strings"
	"sync"
)

// CompletionPredicate decides, line by line, when a command has finished
// responding on one of the process' output streams. It is invoked once per
// line the process emits on that stream while the command is active. Returning
// done == true marks the command complete; returning a non-nil error fails the
// command and aborts the enclosing submission.
//
// The command's captured output is accessible through the command argument, so
// multi-line terminators can inspect prior lines.
type CompletionPredicate func(c *Command, line string) (done bool, err error)

// LineEquals returns a predicate that completes the command when a line
// exactly matches sentinel.
func LineEquals(sentinel string) CompletionPredicate {
	return func(_ *Command, line string) (bool, error) {
		return line == sentinel, nil
	}
}

// LinePrefix returns a predicate that completes the command when a line
// starts with prefix.
func LinePrefix(prefix string) CompletionPredicate {
	return func(_ *Command, line string) (bool, error) {
		return strings.HasPrefix(line, prefix), nil
	}
}

// FailOnAnyLine returns a predicate that fails the command on any non-empty
// line. It is the default stderr policy when no stderr predicate is supplied.
func FailOnAnyLine() CompletionPredicate {
	return func(c *Command, line string) (bool, error) {
		if strings.TrimSpace(line) == "" {
			return false, nil
		}
		return false, &FailedCommandError{Command: c, Line: line}
	}
}

// Command is a single stdin instruction plus the predicates that decide when
// the process has finished responding to it. Commands are created by the
// caller and mutated only while they execute: output lines are captured per
// stream and the completion flag is set once a predicate reports done.
type Command struct {
	instruction     string
	generatesOutput bool
	stdoutDone      CompletionPredicate
	stderrDone      CompletionPredicate

	mu          sync.Mutex
	stdoutLines []string
	stderrLines []string
	completed   bool
}

// NewCommand creates a command that expects output in response to its
// instruction. The stdout predicate is required; if the stderr predicate is
// nil, any non-empty stderr line fails the command.
func NewCommand(instruction string, stdoutDone, stderrDone CompletionPredicate) *Command {
	if stdoutDone == nil {
		panic("pool: stdout completion predicate is required for a command that generates output")
	}
	if stderrDone == nil {
		stderrDone = FailOnAnyLine()
	}
	return &Command{
		instruction:     instruction,
		generatesOutput: true,
		stdoutDone:      stdoutDone,
		stderrDone:      stderrDone,
	}
}

// NewSilentCommand creates a command that produces no output. It is complete
// as soon as its instruction has been written; no lines are consumed for it.
func NewSilentCommand(instruction string) *Command {
	return &Command{instruction: instruction}
}

// Instruction returns the instruction written to the process' standard input.
func (c *Command) Instruction() string {
	return c.instruction
}

// GeneratesOutput reports whether the command expects output in response to
// its instruction.
func (c *Command) GeneratesOutput() bool {
	return c.generatesOutput
}

// StdoutLines returns the standard output lines captured so far.
func (c *Command) StdoutLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stdoutLines))
	copy(out, c.stdoutLines)
	return out
}

// StderrLines returns the standard error lines captured so far.
func (c *Command) StderrLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stderrLines))
	copy(out, c.stderrLines)
	return out
}

// Stdout returns the captured standard output joined by newlines.
func (c *Command) Stdout() string {
	return strings.Join(c.StdoutLines(), "\n")
}

// Stderr returns the captured standard error joined by newlines.
func (c *Command) Stderr() string {
	return strings.Join(c.StderrLines(), "\n")
}

// Completed reports whether a predicate has marked the command done.
func (c *Command) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// reset clears captured output and the completion flag so the command can be
// dispatched again as part of a re-submitted submission.
func (c *Command) reset() {
	c.mu.Lock()
	c.stdoutLines = nil
	c.stderrLines = nil
	c.completed = false
	c.mu.Unlock()
}

// consumeLine records one output line and runs the matching predicate.
// Lines arriving after the command completed are discarded.
func (c *Command) consumeLine(line string, stderrStream bool) (bool, error) {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return false, nil
	}
	if stderrStream {
		c.stderrLines = append(c.stderrLines, line)
	} else {
		c.stdoutLines = append(c.stdoutLines, line)
	}
	c.mu.Unlock()

	pred := c.stdoutDone
	if stderrStream {
		pred = c.stderrDone
	}
	done, err := pred(c, line)
	if done || err != nil {
		c.mu.Lock()
		c.completed = true
		c.mu.Unlock()
	}
	return done, err
}
