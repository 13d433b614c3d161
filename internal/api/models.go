package api

import "github.com/smazurov/procpool/internal/logging"

// HealthResponse is the health check payload.
type HealthResponse struct {
	Body HealthData
}

// HealthData reports API liveness.
type HealthData struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// PoolStatusResponse wraps the pool counters.
type PoolStatusResponse struct {
	Body PoolStatus
}

// PoolStatus is a snapshot of the pool.
type PoolStatus struct {
	Total       int  `json:"total" example:"3" doc:"Executors currently in the pool"`
	Idle        int  `json:"idle" example:"1" doc:"Idle executors"`
	Active      int  `json:"active" example:"2" doc:"Executors running a submission"`
	Starting    int  `json:"starting" example:"0" doc:"Executors spawning their process"`
	QueueDepth  int  `json:"queue_depth" example:"4" doc:"Submissions waiting in the queue"`
	MinSize     int  `json:"min_size" doc:"Configured minimum pool size"`
	MaxSize     int  `json:"max_size" doc:"Configured maximum pool size"`
	ReserveSize int  `json:"reserve_size" doc:"Configured idle reserve"`
	ShutDown    bool `json:"shut_down" doc:"Whether shutdown has been initiated"`
}

// ExecutorsResponse lists the pool's executors.
type ExecutorsResponse struct {
	Body ExecutorList
}

// ExecutorList carries executor states.
type ExecutorList struct {
	Executors []ExecutorInfo `json:"executors" doc:"Executors sorted by identifier"`
}

// ExecutorInfo describes one executor.
type ExecutorInfo struct {
	ID    string `json:"id" example:"executor-3" doc:"Executor identifier"`
	State string `json:"state" example:"idle" doc:"Current state"`
}

// CommandSpec describes one stdin instruction of a submission.
type CommandSpec struct {
	Instruction string `json:"instruction" example:"process job-42" doc:"Line written to the worker's stdin"`
	WaitFor     string `json:"wait_for,omitempty" example:"done" doc:"Stdout line that completes the command; empty means the command produces no output"`
}

// SubmissionRequest is the submit-and-wait request.
type SubmissionRequest struct {
	Body struct {
		Commands         []CommandSpec `json:"commands" minItems:"1" doc:"Instructions executed in order on one process"`
		TerminateProcess bool          `json:"terminate_process,omitempty" doc:"Terminate and replace the process after this submission"`
		TimeoutMs        int           `json:"timeout_ms,omitempty" minimum:"0" doc:"Wait budget in milliseconds; 0 uses the 30s default"`
	}
}

// SubmissionResponse reports a completed submission.
type SubmissionResponse struct {
	Body SubmissionResult
}

// SubmissionResult carries per-command captured output.
type SubmissionResult struct {
	Outcome  string          `json:"outcome" example:"succeeded" doc:"Terminal state of the submission"`
	Commands []CommandResult `json:"commands" doc:"Captured output per command"`
}

// CommandResult is the captured output of one command.
type CommandResult struct {
	Instruction string   `json:"instruction" doc:"The instruction that was written"`
	Stdout      []string `json:"stdout,omitempty" doc:"Captured standard output lines"`
	Stderr      []string `json:"stderr,omitempty" doc:"Captured standard error lines"`
}

// LogsResponse returns recent log entries.
type LogsResponse struct {
	Body LogsData
}

// LogsData wraps the ring buffer contents.
type LogsData struct {
	Entries []logging.LogEntry `json:"entries" doc:"Recent log entries, oldest first"`
}
