package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/procpool/internal/logging"
)

// registerLogRoutes registers the recent-logs endpoint backed by the logging
// ring buffer.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Recent log entries from the in-memory ring buffer, oldest first",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*LogsResponse, error) {
		var entries []logging.LogEntry
		if buffer := logging.Buffer(); buffer != nil {
			entries = buffer.ReadAll()
		}
		return &LogsResponse{Body: LogsData{Entries: entries}}, nil
	})
}
