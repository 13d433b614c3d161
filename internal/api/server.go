package api

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/smazurov/procpool/internal/events"
	"github.com/smazurov/procpool/internal/logging"
	"github.com/smazurov/procpool/internal/pool"
)

// Options configures the API server.
type Options struct {
	Pool *pool.Pool
	Bus  *events.Bus

	// AuthUsername and AuthPassword enable basic auth when both are set.
	AuthUsername string
	AuthPassword string

	// PrometheusHandler, when set, is mounted at GET /metrics without auth.
	PrometheusHandler http.Handler
}

// Server is the Huma v2 API server over one pool.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	pool       *pool.Pool
	bus        *events.Bus
	logger     logging.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(opts *Options) *Server {
	mux := http.NewServeMux()

	config := huma.DefaultConfig("procpool API", "1.0.0")
	config.Info.Description = "Submission and status API for the process pool"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	s := &Server{
		api:    api,
		mux:    mux,
		pool:   opts.Pool,
		bus:    opts.Bus,
		logger: logging.GetLogger("api"),
	}

	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(s.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.PrometheusHandler != nil {
		mux.Handle("GET /metrics", opts.PrometheusHandler)
	}

	s.registerHealthRoutes()
	s.registerPoolRoutes()
	s.registerSubmissionRoutes()
	s.registerLogRoutes()
	s.registerEventRoutes()

	return s
}

// withAuth returns the security requirement for authenticated operations.
func withAuth() []map[string][]string {
	return []map[string][]string{{"basicAuth": {}}}
}

// basicAuthMiddleware enforces HTTP basic authentication for operations that
// carry a security requirement.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		const prefix = "Basic "
		header := ctx.Header("Authorization")
		if !strings.HasPrefix(header, prefix) {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="procpool API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Authentication required")
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(header[len(prefix):])
		if err != nil {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="procpool API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials format", err)
			return
		}
		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) != 2 || parts[0] != username || parts[1] != password {
			ctx.SetHeader("WWW-Authenticate", `Basic realm="procpool API"`)
			huma.WriteErr(s.api, ctx, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

// Mux returns the underlying HTTP mux for additional setup.
func (s *Server) Mux() *http.ServeMux {
	return s.mux
}

// Start serves the API on addr, blocking until the server closes.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}
	return s.httpServer.ListenAndServe()
}

// Stop closes the server without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}
