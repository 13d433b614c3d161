package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/procpool/internal/api"
	"github.com/smazurov/procpool/internal/config"
	"github.com/smazurov/procpool/internal/events"
	"github.com/smazurov/procpool/internal/logging"
	"github.com/smazurov/procpool/internal/metrics"
	"github.com/smazurov/procpool/internal/pool"
)

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	var configFile string
	var workerCommand string
	var addr string
	var minSize, maxSize, reserveSize int
	var logLevel string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the process pool daemon",
		Long: `Starts the pool of worker processes defined in the configuration, ` +
			`serves the submission API and watches the configuration file for ` +
			`sizing changes.`,
		Run: func(c *cobra.Command, _ []string) {
			cfg, err := config.Load(configFile)
			if err != nil {
				cobra.CheckErr(err)
			}

			// CLI flags take precedence over file and environment.
			c.Flags().Visit(func(f *pflag.Flag) {
				switch f.Name {
				case "worker":
					cfg.Worker.Command = workerCommand
				case "addr":
					cfg.Server.Addr = addr
				case "min-size":
					cfg.Pool.MinSize = minSize
				case "max-size":
					cfg.Pool.MaxSize = maxSize
				case "reserve-size":
					cfg.Pool.ReserveSize = reserveSize
				case "log-level":
					cfg.Logging.Level = logLevel
				}
			})
			if logJSON {
				cfg.Logging.Format = "json"
			}

			logging.Initialize(cfg.Logging)
			logger := logging.GetLogger("main")

			if cfg.Worker.Command == "" {
				logger.Error("No worker command configured, set worker.command or --worker")
				os.Exit(1)
			}

			manager, err := buildManager(cfg.Worker)
			if err != nil {
				logger.Error("Failed to build process manager", "error", err)
				os.Exit(1)
			}

			bus := events.New()
			p, err := pool.New(manager.Factory(), pool.Config{
				MinSize:             cfg.Pool.MinSize,
				MaxSize:             cfg.Pool.MaxSize,
				ReserveSize:         cfg.Pool.ReserveSize,
				KeepAlive:           cfg.Pool.KeepAliveDuration(),
				GracefulStopTimeout: cfg.Pool.StopTimeoutDuration(),
				Logger:              logging.GetLogger("pool"),
				OnExecutorStateChange: func(id string, oldState, newState pool.ExecutorState) {
					bus.Publish(events.ExecutorStateChangedEvent{
						ExecutorID: id,
						From:       string(oldState),
						To:         string(newState),
						Timestamp:  time.Now(),
					})
				},
				OnSubmissionComplete: func(outcome pool.Outcome, duration time.Duration) {
					bus.Publish(events.SubmissionCompletedEvent{
						Outcome:    string(outcome),
						DurationMs: duration.Milliseconds(),
						Timestamp:  time.Now(),
					})
				},
			})
			if err != nil {
				logger.Error("Failed to start pool", "error", err)
				os.Exit(1)
			}

			registry := prometheus.NewRegistry()
			poolMetrics := metrics.New(registry)
			unsubMetrics := poolMetrics.Subscribe(bus)
			defer unsubMetrics()
			registry.MustRegister(metrics.NewPoolCollector(p.Stats))

			apiServer := api.NewServer(&api.Options{
				Pool:              p,
				Bus:               bus,
				AuthUsername:      cfg.Server.AuthUsername,
				AuthPassword:      cfg.Server.AuthPassword,
				PrometheusHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			})

			var g run.Group
			g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))
			g.Add(func() error {
				err := apiServer.Start(cfg.Server.Addr)
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}, func(error) {
				_ = apiServer.Stop()
			})

			if configFile != "" {
				if _, statErr := os.Stat(configFile); statErr == nil {
					watcher := config.NewWatcher(configFile, logging.GetLogger("config"))
					watcher.OnReload(func(newCfg config.Config) {
						if err := p.Resize(newCfg.Pool.MinSize, newCfg.Pool.MaxSize, newCfg.Pool.ReserveSize); err != nil {
							logger.Warn("Failed to apply new pool sizing", "error", err)
							return
						}
						bus.Publish(events.ConfigReloadedEvent{
							MinSize:     newCfg.Pool.MinSize,
							MaxSize:     newCfg.Pool.MaxSize,
							ReserveSize: newCfg.Pool.ReserveSize,
							Timestamp:   time.Now(),
						})
					})
					watcherDone := make(chan struct{})
					g.Add(func() error {
						if err := watcher.Start(); err != nil {
							return err
						}
						<-watcherDone
						return nil
					}, func(error) {
						_ = watcher.Stop()
						close(watcherDone)
					})
				}
			}

			err = g.Run()
			var sigErr run.SignalError
			if err != nil && !errors.As(err, &sigErr) {
				logger.Error("Daemon failed", "error", err)
			} else {
				logger.Info("Shutting down")
			}

			p.ForceShutdown()
			if !p.AwaitTermination(30 * time.Second) {
				logger.Warn("Pool did not terminate within the grace period")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "procpool.toml", "Path to configuration file")
	cmd.Flags().StringVarP(&workerCommand, "worker", "w", "", "Worker process command line")
	cmd.Flags().StringVar(&addr, "addr", ":8091", "API listen address")
	cmd.Flags().IntVar(&minSize, "min-size", 1, "Minimum pool size")
	cmd.Flags().IntVar(&maxSize, "max-size", 4, "Maximum pool size")
	cmd.Flags().IntVar(&reserveSize, "reserve-size", 1, "Idle executors kept warm")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Global logging level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	return cmd
}

// buildManager converts worker settings into a CommandManager.
func buildManager(w config.WorkerSettings) (*pool.CommandManager, error) {
	opts := []pool.CommandManagerOption{
		pool.WithManagerLogger(logging.GetLogger("manager")),
	}
	if w.MaxExecutions > 0 {
		opts = append(opts, pool.WithMaxExecutions(w.MaxExecutions))
	}
	if d := w.MaxRuntimeDuration(); d > 0 {
		opts = append(opts, pool.WithMaxRuntime(d))
	}
	if w.StartupInstruction != "" {
		instruction, waitFor := w.StartupInstruction, w.StartupWaitFor
		opts = append(opts, pool.WithStartupSubmission(func() *pool.Submission {
			if waitFor == "" {
				return pool.NewSubmission(pool.NewSilentCommand(instruction))
			}
			return pool.NewSubmission(pool.NewCommand(instruction, pool.LineEquals(waitFor), nil))
		}))
	}
	if w.TerminationInstruction != "" {
		instruction := w.TerminationInstruction
		opts = append(opts, pool.WithTerminationSubmission(func() *pool.Submission {
			return pool.NewSubmission(pool.NewSilentCommand(instruction))
		}))
	}
	return pool.NewCommandManager(w.Command, opts...)
}
