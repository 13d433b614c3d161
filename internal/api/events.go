package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/procpool/internal/events"
)

// registerEventRoutes registers the pool event stream.
func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Pool Event Stream",
		Description: "Executor state transitions and submission completions via Server-Sent Events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"executor_state": events.ExecutorStateChangedEvent{},
		"submission":     events.SubmissionCompletedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubState := events.SubscribeToChannel[events.ExecutorStateChangedEvent](s.bus, eventCh)
		defer unsubState()
		unsubSub := events.SubscribeToChannel[events.SubmissionCompletedEvent](s.bus, eventCh)
		defer unsubSub()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
