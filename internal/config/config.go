package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/procpool/internal/logging"
)

// Config is the daemon configuration, loaded from a TOML file with
// PROCPOOL_* environment variable overrides.
type Config struct {
	Worker  WorkerSettings `toml:"worker"`
	Pool    PoolSettings   `toml:"pool"`
	Server  ServerSettings `toml:"server"`
	Logging logging.Config `toml:"logging"`
}

// WorkerSettings describes the child process the pool spawns and the optional
// instructions run on startup and termination.
type WorkerSettings struct {
	// Command is the shell-style command line of the worker process.
	Command string `toml:"command"`

	// StartupInstruction is written to a fresh process before it accepts
	// work; StartupWaitFor is the stdout line that marks it ready.
	StartupInstruction string `toml:"startup_instruction"`
	StartupWaitFor     string `toml:"startup_wait_for"`

	// TerminationInstruction is written on graceful process termination.
	TerminationInstruction string `toml:"termination_instruction"`

	// MaxExecutions recycles a process after this many submissions.
	// Zero means no limit.
	MaxExecutions int `toml:"max_executions"`

	// MaxRuntime recycles a process once its accumulated execution time
	// exceeds this duration, e.g. "30m". Empty means no limit.
	MaxRuntime string `toml:"max_runtime"`
}

// PoolSettings holds the pool sizing parameters.
type PoolSettings struct {
	MinSize     int    `toml:"min_size"`
	MaxSize     int    `toml:"max_size"`
	ReserveSize int    `toml:"reserve_size"`
	KeepAlive   string `toml:"keep_alive"`
	StopTimeout string `toml:"stop_timeout"`
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr         string `toml:"addr"`
	AuthUsername string `toml:"auth_username"`
	AuthPassword string `toml:"auth_password"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Pool: PoolSettings{
			MinSize:     1,
			MaxSize:     4,
			ReserveSize: 1,
			KeepAlive:   "1m",
			StopTimeout: "5s",
		},
		Server: ServerSettings{
			Addr: ":8091",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path (if it exists), applies
// environment overrides and validates the result. Precedence: env > file >
// defaults; CLI flags are applied on top by the command layer.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse TOML config: %w", err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every configured value is usable.
func (c Config) Validate() error {
	if c.Pool.MinSize < 0 {
		return fmt.Errorf("pool.min_size must not be negative, got %d", c.Pool.MinSize)
	}
	if c.Pool.MaxSize < 1 || c.Pool.MaxSize < c.Pool.MinSize {
		return fmt.Errorf("pool.max_size must be at least max(1, pool.min_size), got %d", c.Pool.MaxSize)
	}
	if c.Pool.ReserveSize < 0 || c.Pool.ReserveSize > c.Pool.MaxSize {
		return fmt.Errorf("pool.reserve_size must be between 0 and pool.max_size, got %d", c.Pool.ReserveSize)
	}
	for name, value := range map[string]string{
		"pool.keep_alive":    c.Pool.KeepAlive,
		"pool.stop_timeout":  c.Pool.StopTimeout,
		"worker.max_runtime": c.Worker.MaxRuntime,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", name, value, err)
		}
	}
	if c.Worker.MaxExecutions < 0 {
		return fmt.Errorf("worker.max_executions must not be negative, got %d", c.Worker.MaxExecutions)
	}
	return nil
}

// KeepAliveDuration returns the parsed pool keep-alive.
func (p PoolSettings) KeepAliveDuration() time.Duration {
	return parseDuration(p.KeepAlive)
}

// StopTimeoutDuration returns the parsed graceful stop timeout.
func (p PoolSettings) StopTimeoutDuration() time.Duration {
	return parseDuration(p.StopTimeout)
}

// MaxRuntimeDuration returns the parsed worker runtime limit.
func (w WorkerSettings) MaxRuntimeDuration() time.Duration {
	return parseDuration(w.MaxRuntime)
}

// parseDuration is for values Validate already checked; empty means zero.
func parseDuration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, _ := time.ParseDuration(value)
	return d
}

// applyEnv overrides configuration fields from PROCPOOL_* environment
// variables.
func applyEnv(cfg *Config) {
	envString("PROCPOOL_WORKER_COMMAND", &cfg.Worker.Command)
	envString("PROCPOOL_WORKER_MAX_RUNTIME", &cfg.Worker.MaxRuntime)
	envInt("PROCPOOL_WORKER_MAX_EXECUTIONS", &cfg.Worker.MaxExecutions)
	envInt("PROCPOOL_POOL_MIN_SIZE", &cfg.Pool.MinSize)
	envInt("PROCPOOL_POOL_MAX_SIZE", &cfg.Pool.MaxSize)
	envInt("PROCPOOL_POOL_RESERVE_SIZE", &cfg.Pool.ReserveSize)
	envString("PROCPOOL_POOL_KEEP_ALIVE", &cfg.Pool.KeepAlive)
	envString("PROCPOOL_SERVER_ADDR", &cfg.Server.Addr)
	envString("PROCPOOL_AUTH_USERNAME", &cfg.Server.AuthUsername)
	envString("PROCPOOL_AUTH_PASSWORD", &cfg.Server.AuthPassword)
	envString("PROCPOOL_LOGGING_LEVEL", &cfg.Logging.Level)
	envString("PROCPOOL_LOGGING_FORMAT", &cfg.Logging.Format)
}

func envString(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

func envInt(key string, target *int) {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}
