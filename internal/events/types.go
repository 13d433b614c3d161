package events

import "time"

// Event type constants for kelindar/event.
const (
	TypeExecutorStateChanged uint32 = iota + 1
	TypeSubmissionCompleted
	TypeConfigReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ExecutorStateChangedEvent is published on every executor state transition.
type ExecutorStateChangedEvent struct {
	ExecutorID string    `json:"executor_id" example:"executor-3" doc:"Executor identifier within the pool"`
	From       string    `json:"from" example:"idle" doc:"Previous state"`
	To         string    `json:"to" example:"executing" doc:"New state"`
	Timestamp  time.Time `json:"timestamp" doc:"Transition time"`
}

// Type returns the event type identifier for ExecutorStateChangedEvent.
func (e ExecutorStateChangedEvent) Type() uint32 { return TypeExecutorStateChanged }

// SubmissionCompletedEvent is published when a submission reaches a terminal
// state on an executor.
type SubmissionCompletedEvent struct {
	Outcome    string    `json:"outcome" example:"succeeded" doc:"Terminal state: succeeded, failed or cancelled"`
	DurationMs int64     `json:"duration_ms" example:"125" doc:"Execution duration in milliseconds"`
	Timestamp  time.Time `json:"timestamp" doc:"Completion time"`
}

// Type returns the event type identifier for SubmissionCompletedEvent.
func (e SubmissionCompletedEvent) Type() uint32 { return TypeSubmissionCompleted }

// ConfigReloadedEvent is published when the configuration watcher applies new
// pool sizing parameters.
type ConfigReloadedEvent struct {
	MinSize     int       `json:"min_size" doc:"New minimum pool size"`
	MaxSize     int       `json:"max_size" doc:"New maximum pool size"`
	ReserveSize int       `json:"reserve_size" doc:"New reserve size"`
	Timestamp   time.Time `json:"timestamp" doc:"Reload time"`
}

// Type returns the event type identifier for ConfigReloadedEvent.
func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }
