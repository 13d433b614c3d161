package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/procpool/internal/config"
	"github.com/smazurov/procpool/internal/logging"
	"github.com/smazurov/procpool/internal/pool"
)

// CreateExecCmd creates the exec command.
func CreateExecCmd() *cobra.Command {
	var configFile string
	var workerCommand string
	var waitFor string
	var timeout time.Duration
	var logLevel string

	cmd := &cobra.Command{
		Use:   "exec [instruction...]",
		Short: "Run instructions on a single worker process",
		Long: `Spawns one worker process, writes each instruction to its standard ` +
			`input in order and prints the captured output. With --wait-for, every ` +
			`instruction is considered answered once the worker emits the given ` +
			`stdout line; without it, instructions are written without waiting for ` +
			`output.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(c *cobra.Command, args []string) {
			cfg, err := config.Load(configFile)
			if err != nil {
				cobra.CheckErr(err)
			}
			if c.Flags().Changed("worker") {
				cfg.Worker.Command = workerCommand
			}
			cfg.Logging.Level = logLevel
			logging.Initialize(cfg.Logging)
			logger := logging.GetLogger("exec")

			if cfg.Worker.Command == "" {
				logger.Error("No worker command configured, set worker.command or --worker")
				os.Exit(1)
			}

			manager, err := buildManager(cfg.Worker)
			if err != nil {
				logger.Error("Failed to build process manager", "error", err)
				os.Exit(1)
			}

			p, err := pool.NewSinglePool(manager.Factory())
			if err != nil {
				logger.Error("Failed to start pool", "error", err)
				os.Exit(1)
			}
			shutdown := func() {
				p.Shutdown()
				p.AwaitTermination(10 * time.Second)
			}
			defer shutdown()

			cmds := make([]*pool.Command, 0, len(args))
			for _, instruction := range args {
				if waitFor == "" {
					cmds = append(cmds, pool.NewSilentCommand(instruction))
					continue
				}
				cmds = append(cmds, pool.NewCommand(instruction, pool.LineEquals(waitFor), nil))
			}

			f, err := p.Submit(pool.NewSubmission(cmds...))
			if err != nil {
				logger.Error("Submit failed", "error", err)
				shutdown()
				os.Exit(1)
			}

			if _, err := f.GetWithTimeout(timeout); err != nil {
				if errors.Is(err, pool.ErrTimeout) {
					f.Cancel(true)
					logger.Error("Submission timed out", "timeout", timeout)
				} else {
					logger.Error("Submission failed", "error", err)
				}
				shutdown()
				os.Exit(1)
			}

			for _, cmd := range cmds {
				for _, line := range cmd.StdoutLines() {
					fmt.Println(line)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "procpool.toml", "Path to configuration file")
	cmd.Flags().StringVarP(&workerCommand, "worker", "w", "", "Worker process command line")
	cmd.Flags().StringVar(&waitFor, "wait-for", "", "Stdout line that completes each instruction")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Submission timeout")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "Logging level")

	return cmd
}
