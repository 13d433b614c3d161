package pool

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProcess is an in-memory Process. A script goroutine reads instruction
// lines from stdin and answers with the lines the respond function returns.
// Closing stdin ends the script and closes the output streams, mimicking a
// well-behaved child; Kill closes everything immediately.
type fakeProcess struct {
	stdinR, stdoutR, stderrR *io.PipeReader
	stdinW, stdoutW, stderrW *io.PipeWriter

	done     chan struct{}
	killOnce sync.Once
}

// respondFunc maps one instruction line to the lines written on stdout and
// stderr in response.
type respondFunc func(line string) (stdout, stderr []string)

func newFakeProcess(respond respondFunc) *fakeProcess {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	p := &fakeProcess{
		stdinR: stdinR, stdinW: stdinW,
		stdoutR: stdoutR, stdoutW: stdoutW,
		stderrR: stderrR, stderrW: stderrW,
		done: make(chan struct{}),
	}
	go func() {
		scanner := bufio.NewScanner(stdinR)
		for scanner.Scan() {
			out, errOut := respond(scanner.Text())
			for _, line := range out {
				if _, err := io.WriteString(stdoutW, line+"\n"); err != nil {
					return
				}
			}
			for _, line := range errOut {
				if _, err := io.WriteString(stderrW, line+"\n"); err != nil {
					return
				}
			}
		}
		p.exit()
	}()
	return p
}

func (p *fakeProcess) exit() {
	p.killOnce.Do(func() {
		p.stdoutW.Close()
		p.stderrW.Close()
		p.stdinR.Close()
		close(p.done)
	})
}

func (p *fakeProcess) Pid() int              { return 4242 }
func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdinW }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader     { return p.stderrR }

func (p *fakeProcess) Wait() error {
	<-p.done
	return nil
}

func (p *fakeProcess) Kill() error {
	p.exit()
	return nil
}

// echoRespond answers every instruction with one stdout line echoing it.
func echoRespond(line string) ([]string, []string) {
	return []string{line}, nil
}

// fakeManager is a scriptable ProcessManager for tests.
type fakeManager struct {
	respond     respondFunc
	startup     func() *Submission
	termination func() *Submission
	keepAlive   func(executions int, totalRuntime time.Duration) bool

	mu          sync.Mutex
	spawned     int
	terminated  int
	lastExit    int
}

func newFakeManager(respond respondFunc) *fakeManager {
	if respond == nil {
		respond = echoRespond
	}
	return &fakeManager{respond: respond}
}

func (m *fakeManager) factory() ManagerFactory {
	return func() ProcessManager { return m }
}

func (m *fakeManager) Spawn() (Process, error) {
	m.mu.Lock()
	m.spawned++
	m.mu.Unlock()
	return newFakeProcess(m.respond), nil
}

func (m *fakeManager) StartupSubmission() *Submission {
	if m.startup == nil {
		return nil
	}
	return m.startup()
}

func (m *fakeManager) TerminationSubmission() *Submission {
	if m.termination == nil {
		return nil
	}
	return m.termination()
}

func (m *fakeManager) OnStartup(Process) {}

func (m *fakeManager) OnTermination(exitCode int) {
	m.mu.Lock()
	m.terminated++
	m.lastExit = exitCode
	m.mu.Unlock()
}

func (m *fakeManager) KeepAlive(executions int, totalRuntime time.Duration) bool {
	if m.keepAlive == nil {
		return true
	}
	return m.keepAlive(executions, totalRuntime)
}

func (m *fakeManager) spawnCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spawned
}

// echoSubmission builds a submission with one command per instruction, each
// completed when the echoed line comes back.
func echoSubmission(instructions ...string) *Submission {
	cmds := make([]*Command, 0, len(instructions))
	for _, in := range instructions {
		in := in
		cmds = append(cmds, NewCommand(in, func(_ *Command, line string) (bool, error) {
			return strings.Contains(line, in), nil
		}, nil))
	}
	return NewSubmission(cmds...)
}

// waitFor polls cond until it returns true or the deadline expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
