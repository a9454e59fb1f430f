package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/internal/streaming"
	"github.com/nvallejo/weft/internal/trigger"
	"github.com/nvallejo/weft/internal/validation"
)

// ExecutionController is the slice of the dispatcher the API needs:
// inspecting and cancelling in-flight executions.
type ExecutionController interface {
	Cancel(executionID string) error
	Status(ctx context.Context, executionID string) (*store.Execution, []*store.NodeRun, error)
}

// Deps holds the dependencies for the API server.
type Deps struct {
	Store      store.Store
	Triggers   *trigger.Service
	Controller ExecutionController
	Validator  *validation.WorkflowValidator
	Hub        streaming.EventHub
	Logger     *slog.Logger
}

// Server exposes the workflow engine over HTTP.
type Server struct {
	deps     Deps
	eventlog *store.EventLog
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps, eventlog: store.NewEventLog(deps.Store)}
}

// Handler returns the HTTP handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Workflows.
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PUT /api/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/diagram", s.handleDiagram)

	// Runs.
	mux.HandleFunc("POST /api/workflows/{id}/run", s.handleRunWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/executions", s.handleListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", s.handleGetExecution)
	mux.HandleFunc("POST /api/executions/{id}/cancel", s.handleCancelExecution)
	mux.HandleFunc("GET /api/executions/{id}/events", s.handleListEvents)
	mux.HandleFunc("GET /api/executions/{id}/replay", s.handleReplayExecution)

	// Triggers.
	mux.HandleFunc("POST /api/workflows/{id}/webhooks", s.handleRegisterWebhook)
	mux.HandleFunc("POST /api/workflows/{id}/schedules", s.handleRegisterSchedule)
	mux.HandleFunc("POST /hooks/{token}", s.handleWebhookDelivery)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/executions/{id}", s.handleSSEExecution)

	return mux
}
