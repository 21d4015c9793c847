package web

import (
	"log"
	"net/http"
	"strings"

	"github.com/example/gateci/internal/endpoint"
	"github.com/example/gateci/internal/service"
	"github.com/example/gateci/internal/workflow"
)

// BuildRunner kicks off build execution in the background. Satisfied by
// *service.Engine.
type BuildRunner interface {
	RunBuildAsync(buildID string, wf *workflow.Workflow)
}

// Server is the web HTTP server.
type Server struct {
	addr     string
	handlers *Handlers
	mux      *http.ServeMux
}

// NewServer creates a new web server.
func NewServer(addr string, orchestrator *service.OrchestratorService, runner BuildRunner, wf *workflow.Workflow) *Server {
	s := &Server{
		addr:     addr,
		handlers: NewHandlers(endpoint.MakeEndpoints(orchestrator), runner, wf),
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Trailing slash enables prefix matching for all /api/builds/* paths
	s.mux.HandleFunc("/api/events/push", s.corsMiddleware(s.handlers.PushEvent))
	s.mux.HandleFunc("/api/builds", s.corsMiddleware(s.routeBuilds))
	s.mux.HandleFunc("/api/builds/", s.corsMiddleware(s.routeBuilds))
}

// routeBuilds routes requests to the appropriate handler based on the path.
func (s *Server) routeBuilds(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/builds")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		// GET /api/builds - list builds
		if r.Method == http.MethodGet {
			s.handlers.ListBuilds(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case strings.Contains(path, "/jobs/") && strings.HasSuffix(path, "/log"):
		// GET /api/builds/{id}/jobs/{name}/log
		if r.Method == http.MethodGet {
			s.handlers.GetJobLog(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		// GET /api/builds/{id}
		if r.Method == http.MethodGet {
			s.handlers.GetBuild(w, r)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}
