package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "procpool.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pool.MinSize != 1 || cfg.Pool.MaxSize != 4 {
		t.Errorf("default pool sizing = %d/%d, want 1/4", cfg.Pool.MinSize, cfg.Pool.MaxSize)
	}
	if cfg.Server.Addr != ":8091" {
		t.Errorf("default server addr = %q", cfg.Server.Addr)
	}
	if cfg.Pool.KeepAliveDuration() != time.Minute {
		t.Errorf("default keep-alive = %v, want 1m", cfg.Pool.KeepAliveDuration())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load of a missing file should fall back to defaults: %v", err)
	}
	if cfg.Pool.MaxSize != 4 {
		t.Errorf("pool.max_size = %d, want default 4", cfg.Pool.MaxSize)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
[worker]
command = "my-worker --stdin"
max_executions = 50
max_runtime = "30m"

[pool]
min_size = 2
max_size = 8
reserve_size = 2
keep_alive = "45s"

[server]
addr = ":9000"

[logging]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Worker.Command != "my-worker --stdin" {
		t.Errorf("worker.command = %q", cfg.Worker.Command)
	}
	if cfg.Pool.MinSize != 2 || cfg.Pool.MaxSize != 8 || cfg.Pool.ReserveSize != 2 {
		t.Errorf("pool sizing = %+v", cfg.Pool)
	}
	if cfg.Pool.KeepAliveDuration() != 45*time.Second {
		t.Errorf("keep-alive = %v, want 45s", cfg.Pool.KeepAliveDuration())
	}
	if cfg.Worker.MaxRuntimeDuration() != 30*time.Minute {
		t.Errorf("max runtime = %v, want 30m", cfg.Worker.MaxRuntimeDuration())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q", cfg.Logging.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[pool]
min_size = 2
max_size = 8
`)
	t.Setenv("PROCPOOL_POOL_MAX_SIZE", "16")
	t.Setenv("PROCPOOL_WORKER_COMMAND", "env-worker")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pool.MaxSize != 16 {
		t.Errorf("pool.max_size = %d, want env override 16", cfg.Pool.MaxSize)
	}
	if cfg.Pool.MinSize != 2 {
		t.Errorf("pool.min_size = %d, want file value 2", cfg.Pool.MinSize)
	}
	if cfg.Worker.Command != "env-worker" {
		t.Errorf("worker.command = %q, want env override", cfg.Worker.Command)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `pool = [`},
		{"negative min", "[pool]\nmin_size = -1\nmax_size = 2"},
		{"max below min", "[pool]\nmin_size = 5\nmax_size = 2"},
		{"reserve above max", "[pool]\nmin_size = 0\nmax_size = 2\nreserve_size = 3"},
		{"bad duration", "[pool]\nmin_size = 0\nmax_size = 2\nkeep_alive = \"soon\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
