package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nvallejo/weft/internal/diagram"
	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

// --- Workflows ---

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Name       string                    `json:"name"`
		Definition schema.WorkflowDefinition `json:"definition"`
		Active     bool                      `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.deps.Validator.ValidateDefinition(&body.Definition); err != nil {
		writeEngineError(w, err)
		return
	}

	now := time.Now().UTC()
	wf := &store.Workflow{
		ID:         uuid.New().String(),
		Name:       body.Name,
		Definition: body.Definition,
		Active:     body.Active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.deps.Store.CreateWorkflow(ctx, wf); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := store.WorkflowFilter{
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}

	wfs, err := s.deps.Store.ListWorkflows(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": wfs})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.deps.Store.GetWorkflow(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       *string                    `json:"name"`
		Definition *schema.WorkflowDefinition `json:"definition"`
		Active     *bool                      `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Definition != nil {
		if err := s.deps.Validator.ValidateDefinition(body.Definition); err != nil {
			writeEngineError(w, err)
			return
		}
	}

	id := r.PathValue("id")
	update := store.WorkflowUpdate{Name: body.Name, Definition: body.Definition, Active: body.Active}
	if err := s.deps.Store.UpdateWorkflow(r.Context(), id, update); err != nil {
		writeEngineError(w, err)
		return
	}

	wf, err := s.deps.Store.GetWorkflow(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.DeleteWorkflow(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDiagram renders a workflow as mermaid, ascii, or png. When an
// execution_id is given the node run states of that execution are
// overlaid on the diagram.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wf, err := s.deps.Store.GetWorkflow(ctx, r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	var runs []*store.NodeRun
	if execID := r.URL.Query().Get("execution_id"); execID != "" {
		runs, err = s.deps.Store.ListNodeRuns(ctx, execID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
	}

	model, err := diagram.Build(wf, runs)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "mermaid":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, diagram.RenderMermaid(model))
	case "ascii":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, diagram.RenderASCII(model))
	case "png":
		png, err := diagram.RenderImage(ctx, model)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format: %s", format))
	}
}

// --- Runs ---

// handleRunWorkflow starts a manual run and waits for it to finish. A run
// error still carries the execution record: partial results are visible.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Input map[string]any `json:"input"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	exec, err := s.deps.Triggers.RunManual(r.Context(), r.PathValue("id"), body.Input)
	if err != nil && exec == nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := store.ExecutionFilter{
		WorkflowID: r.PathValue("id"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := schema.ExecutionStatus(v)
		filter.Status = &status
	}

	execs, err := s.deps.Store.ListExecutions(r.Context(), filter)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, runs, err := s.deps.Controller.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"execution": exec,
		"node_runs": runs,
	})
}

func (s *Server) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Cancel(r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleReplayExecution rebuilds the node-run view of an execution from its
// event log alone. The reconstruction fails if the log has sequence gaps,
// so a 200 here doubles as an integrity check on the stored history.
func (s *Server) handleReplayExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, err := s.deps.Store.GetExecution(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	runs, err := s.eventlog.Replay(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"execution": exec,
		"node_runs": runs,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.deps.Store.GetEvents(r.Context(), r.PathValue("id"), queryInt64(r, "since", 0))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// --- Triggers ---

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	hook, err := s.deps.Triggers.RegisterWebhook(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hook)
}

func (s *Server) handleRegisterSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Cron  string         `json:"cron"`
		Input map[string]any `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	sched, err := s.deps.Triggers.RegisterSchedule(r.Context(), r.PathValue("id"), body.Cron, body.Input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

// handleWebhookDelivery accepts an external payload on a webhook token
// and runs the bound workflow with it as input.
func (s *Server) handleWebhookDelivery(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return
		}
	}

	exec, err := s.deps.Triggers.FireWebhook(r.Context(), r.PathValue("token"), payload)
	if err != nil && exec == nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
