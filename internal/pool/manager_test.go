package pool

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{
			name:  "simple",
			input: "cat -n",
			want:  []string{"cat", "-n"},
		},
		{
			name:  "single quotes",
			input: `sh -c 'while read line; do echo $line; done'`,
			want:  []string{"sh", "-c", "while read line; do echo $line; done"},
		},
		{
			name:  "double quotes",
			input: `worker --name "my worker"`,
			want:  []string{"worker", "--name", "my worker"},
		},
		{
			name:  "escaped space",
			input: `worker my\ file`,
			want:  []string{"worker", "my file"},
		},
		{
			name:    "unclosed quote",
			input:   `worker "broken`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommand() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseCommand() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("arg %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNewCommandManagerRejectsEmptyCommand(t *testing.T) {
	if _, err := NewCommandManager(""); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestCommandManagerKeepAliveLimits(t *testing.T) {
	m, err := NewCommandManager("cat",
		WithMaxExecutions(3),
		WithMaxRuntime(time.Minute),
	)
	if err != nil {
		t.Fatalf("NewCommandManager failed: %v", err)
	}

	if !m.KeepAlive(2, time.Second) {
		t.Error("expected keep-alive below both limits")
	}
	if m.KeepAlive(3, time.Second) {
		t.Error("expected recycling at the execution limit")
	}
	if m.KeepAlive(1, time.Hour) {
		t.Error("expected recycling past the runtime limit")
	}

	unlimited, _ := NewCommandManager("cat")
	if !unlimited.KeepAlive(1000, 24*time.Hour) {
		t.Error("manager without limits should always keep alive")
	}
}

func TestCommandManagerSpawnsRealProcess(t *testing.T) {
	m, err := NewCommandManager(`sh -c 'while read line; do echo "got $line"; done'`,
		WithManagerLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewCommandManager failed: %v", err)
	}

	e := newExecutor("executor-sh", m, testLogger(), nil, time.Second)
	if err := e.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop(true)

	cmd := NewCommand("hello", func(_ *Command, line string) (bool, error) {
		return strings.Contains(line, "hello"), nil
	}, nil)
	f := runFuture(NewSubmission(cmd))
	e.Execute(f)

	if _, err := f.GetWithTimeout(5 * time.Second); err != nil {
		t.Fatalf("submission on real process failed: %v", err)
	}
	if got := cmd.Stdout(); got != "got hello" {
		t.Errorf("captured output = %q, want %q", got, "got hello")
	}
}

func TestCommandManagerStartupSubmission(t *testing.T) {
	m, err := NewCommandManager(`sh -c 'while read line; do echo "$line"; done'`,
		WithStartupSubmission(func() *Submission {
			return NewSubmission(NewCommand("ready?", LineEquals("ready?"), nil))
		}),
		WithManagerLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewCommandManager failed: %v", err)
	}

	e := newExecutor("executor-sh", m, testLogger(), nil, time.Second)
	if err := e.Start(); err != nil {
		t.Fatalf("Start with startup submission failed: %v", err)
	}
	defer e.Stop(true)

	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle", e.State())
	}
}
