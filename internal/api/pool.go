package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/procpool/internal/pool"
)

const defaultSubmissionTimeout = 30 * time.Second

// registerHealthRoutes registers the unauthenticated health check.
func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"health"},
		Security:    []map[string][]string{}, // no auth required
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthData{Status: "ok"}}, nil
	})
}

// registerPoolRoutes registers pool status and executor listing.
func (s *Server) registerPoolRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-pool-status",
		Method:      http.MethodGet,
		Path:        "/api/pool",
		Summary:     "Pool Status",
		Description: "Current pool counters and sizing parameters",
		Tags:        []string{"pool"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*PoolStatusResponse, error) {
		stats := s.pool.Stats()
		return &PoolStatusResponse{Body: PoolStatus{
			Total:       stats.Total,
			Idle:        stats.Idle,
			Active:      stats.Active,
			Starting:    stats.Starting,
			QueueDepth:  stats.QueueDepth,
			MinSize:     stats.MinSize,
			MaxSize:     stats.MaxSize,
			ReserveSize: stats.ReserveSize,
			ShutDown:    s.pool.IsShutDown(),
		}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-executors",
		Method:      http.MethodGet,
		Path:        "/api/executors",
		Summary:     "List Executors",
		Description: "Every executor in the pool with its current state",
		Tags:        []string{"pool"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*ExecutorsResponse, error) {
		states := s.pool.ExecutorStates()
		executors := make([]ExecutorInfo, 0, len(states))
		for id, state := range states {
			executors = append(executors, ExecutorInfo{ID: id, State: string(state)})
		}
		sort.Slice(executors, func(i, j int) bool { return executors[i].ID < executors[j].ID })
		return &ExecutorsResponse{Body: ExecutorList{Executors: executors}}, nil
	})
}

// registerSubmissionRoutes registers the submit-and-wait endpoint.
func (s *Server) registerSubmissionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "run-submission",
		Method:      http.MethodPost,
		Path:        "/api/submissions",
		Summary:     "Run Submission",
		Description: "Submit a sequence of instructions to the pool and wait for the result",
		Tags:        []string{"submissions"},
		Security:    withAuth(),
		Errors:      []int{401, 422, 503, 504},
	}, func(_ context.Context, input *SubmissionRequest) (*SubmissionResponse, error) {
		cmds := make([]*pool.Command, 0, len(input.Body.Commands))
		for _, spec := range input.Body.Commands {
			if spec.WaitFor == "" {
				cmds = append(cmds, pool.NewSilentCommand(spec.Instruction))
				continue
			}
			cmds = append(cmds, pool.NewCommand(spec.Instruction, pool.LineEquals(spec.WaitFor), nil))
		}

		sub := pool.NewSubmission(cmds...)
		if input.Body.TerminateProcess {
			sub.Terminating()
		}

		f, err := s.pool.Submit(sub)
		if err != nil {
			if errors.Is(err, pool.ErrPoolShutDown) {
				return nil, huma.Error503ServiceUnavailable("pool is shut down")
			}
			return nil, huma.Error422UnprocessableEntity("invalid submission", err)
		}

		timeout := defaultSubmissionTimeout
		if input.Body.TimeoutMs > 0 {
			timeout = time.Duration(input.Body.TimeoutMs) * time.Millisecond
		}

		outcome := string(pool.OutcomeSucceeded)
		if _, err := f.GetWithTimeout(timeout); err != nil {
			switch {
			case errors.Is(err, pool.ErrTimeout):
				f.Cancel(true)
				return nil, huma.Error504GatewayTimeout("submission timed out")
			case errors.Is(err, pool.ErrCancelled):
				outcome = string(pool.OutcomeCancelled)
			default:
				s.logger.Warn("Submission failed", "error", err)
				outcome = string(pool.OutcomeFailed)
			}
		}

		results := make([]CommandResult, 0, len(cmds))
		for _, cmd := range cmds {
			results = append(results, CommandResult{
				Instruction: cmd.Instruction(),
				Stdout:      cmd.StdoutLines(),
				Stderr:      cmd.StderrLines(),
			})
		}
		return &SubmissionResponse{Body: SubmissionResult{Outcome: outcome, Commands: results}}, nil
	})
}
