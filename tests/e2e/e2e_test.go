package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/internal/engine"
	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/internal/monitor"
	"github.com/nvallejo/weft/internal/nodes"
	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/internal/streaming"
	"github.com/nvallejo/weft/internal/trigger"
	"github.com/nvallejo/weft/pkg/schema"
)

// --- Test harness ---

// harness wires the full stack the daemon runs: libsql store wrapped in the
// streaming tap, builtin node registry, dispatcher, and trigger service.
type harness struct {
	t          *testing.T
	store      store.Store
	hub        *streaming.MemoryHub
	dispatcher *engine.Dispatcher
	triggers   *trigger.Service
}

func newHarness(t *testing.T, cfg engine.Config) *harness {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "e2e.db")
	base, err := store.NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, base.Migrate(context.Background()))
	t.Cleanup(func() { _ = base.Close() })

	hub := streaming.NewMemoryHub()
	st := streaming.NewTappedStore(base, hub)

	reg := nodes.NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg, nodes.Deps{
		Evaluator: expressions.NewExprEngine(),
		JQ:        expressions.NewGoJQEngine(),
		Monitor:   monitor.Nop{},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := engine.NewDispatcher(reg, st, monitor.Nop{}, logger, cfg)
	scheduler := trigger.NewScheduler(st, dispatcher, logger)
	triggers := trigger.NewService(st, dispatcher, scheduler, logger)

	return &harness{
		t:          t,
		store:      st,
		hub:        hub,
		dispatcher: dispatcher,
		triggers:   triggers,
	}
}

func (h *harness) seed(def schema.WorkflowDefinition) string {
	h.t.Helper()
	now := time.Now().UTC()
	wf := &store.Workflow{
		ID:         uuid.New().String(),
		Name:       h.t.Name(),
		Definition: def,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(h.t, h.store.CreateWorkflow(context.Background(), wf))
	return wf.ID
}

func (h *harness) run(wfID string, input map[string]any) *store.Execution {
	h.t.Helper()
	exec, err := h.dispatcher.Run(context.Background(), wfID, input, schema.RunModeManual)
	require.NoError(h.t, err)
	return exec
}

func (h *harness) nodeRuns(execID string) map[string]*store.NodeRun {
	h.t.Helper()
	runs, err := h.store.ListNodeRuns(context.Background(), execID)
	require.NoError(h.t, err)
	byNode := make(map[string]*store.NodeRun, len(runs))
	for _, r := range runs {
		byNode[r.NodeID] = r
	}
	return byNode
}

func (h *harness) events(execID string) []*store.Event {
	h.t.Helper()
	evs, err := h.store.GetEvents(context.Background(), execID, 0)
	require.NoError(h.t, err)
	return evs
}

// --- Scenarios ---

func TestLinearWorkflowEndToEnd(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "shape", Type: "data-transform", Parameters: map[string]any{
				"mapping": map[string]any{"state": "status"},
			}},
			{ID: "note", Type: "log", Parameters: map[string]any{
				"message": "run finished with {{state}}",
			}},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "shape"},
			{Source: "shape", Target: "note"},
		},
	})

	exec := h.run(wfID, map[string]any{"status": "ready"})

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, schema.RunModeManual, exec.Mode)
	assert.Equal(t, 3, exec.Stats.NodesExecuted)
	assert.Equal(t, 0, exec.Stats.NodesFailed)
	require.NotNil(t, exec.FinishedAt)

	runs := h.nodeRuns(exec.ID)
	require.Len(t, runs, 3)
	for _, id := range []string{"start", "shape", "note"} {
		require.Contains(t, runs, id)
		assert.Equal(t, schema.NodeRunSuccess, runs[id].Status)
	}

	var shaped nodes.Result
	require.NoError(t, json.Unmarshal(runs["shape"].Output, &shaped))
	assert.Equal(t, "ready", shaped.Data["state"])

	evs := h.events(exec.ID)
	require.NotEmpty(t, evs)
	assert.Equal(t, schema.EventExecutionStarted, evs[0].Type)
	assert.Equal(t, schema.EventExecutionFinished, evs[len(evs)-1].Type)
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Sequence, "event sequence is contiguous from 1")
	}
}

func TestConditionalRouting(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "gate", Type: "if", Parameters: map[string]any{
				"condition": "input.amount > 100",
			}},
			{ID: "big", Type: "log"},
			{ID: "small", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "gate"},
			{Source: "gate", Target: "big", SourceHandle: schema.BranchTrue},
			{Source: "gate", Target: "small", SourceHandle: schema.BranchFalse},
		},
	})

	exec := h.run(wfID, map[string]any{"amount": 250.0})

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	runs := h.nodeRuns(exec.ID)
	assert.Contains(t, runs, "big")
	assert.NotContains(t, runs, "small", "only the matching branch fires")
}

func TestSwitchRouting(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "route", Type: "switch", Parameters: map[string]any{
				"field": "tier",
				"cases": []any{
					map[string]any{"value": "gold", "branch": "vip"},
				},
			}},
			{ID: "vip-lane", Type: "log"},
			{ID: "everyone-else", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "route"},
			{Source: "route", Target: "vip-lane", SourceHandle: "vip"},
			{Source: "route", Target: "everyone-else", SourceHandle: schema.BranchDefault},
		},
	})

	exec := h.run(wfID, map[string]any{"tier": "gold"})

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	runs := h.nodeRuns(exec.ID)
	assert.Contains(t, runs, "vip-lane")
	assert.NotContains(t, runs, "everyone-else")
}

func TestSplitFanOut(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "fan", Type: "split", Parameters: map[string]any{"field": "items"}},
			{ID: "worker", Type: "log", Parameters: map[string]any{
				"message": "handling {{item}}",
			}},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "fan"},
			{Source: "fan", Target: "worker"},
		},
	})

	exec := h.run(wfID, map[string]any{"items": []any{"a", "b", "c"}})

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, 5, exec.Stats.NodesExecuted, "trigger + split + three worker firings")

	// The worker ran once per element; its node-run row is last-write-wins,
	// so the firing count only shows in the event log.
	completed := 0
	for _, ev := range h.events(exec.ID) {
		if ev.NodeID == "worker" && ev.Type == schema.EventNodeCompleted {
			completed++
		}
	}
	assert.Equal(t, 3, completed)
}

func TestHTTPRequestNode(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer upstream.Close()

	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "call", Type: "http-request", Parameters: map[string]any{
				"url": upstream.URL,
			}},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "call"},
		},
	})

	exec := h.run(wfID, nil)

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, int64(1), hits.Load())

	runs := h.nodeRuns(exec.ID)
	require.Contains(t, runs, "call")
	assert.Equal(t, schema.NodeRunSuccess, runs["call"].Status)

	var out nodes.Result
	require.NoError(t, json.Unmarshal(runs["call"].Output, &out))
	assert.Equal(t, float64(http.StatusOK), out.Data["statusCode"])
}

func TestFailedNodeLeavesRunSuccessful(t *testing.T) {
	h := newHarness(t, engine.Config{})

	// The gate has no condition, so it fails at execution time; the sibling
	// branch still runs and the run still reaches success.
	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "gate", Type: "if"},
			{ID: "sibling", Type: "log"},
			{ID: "downstream", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "gate"},
			{Source: "start", Target: "sibling"},
			{Source: "gate", Target: "downstream", SourceHandle: schema.BranchTrue},
		},
	})

	exec := h.run(wfID, nil)

	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, 1, exec.Stats.NodesFailed)

	runs := h.nodeRuns(exec.ID)
	require.Contains(t, runs, "gate")
	assert.Equal(t, schema.NodeRunError, runs["gate"].Status)
	assert.Contains(t, runs, "sibling")
	assert.NotContains(t, runs, "downstream", "the failed node schedules nothing")
}

func TestCyclicWorkflowHitsUnitCap(t *testing.T) {
	h := newHarness(t, engine.Config{
		MaxUnitsPerRun: 20,
		Backoff:        []time.Duration{time.Millisecond},
	})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "ping", Type: "log"},
			{ID: "pong", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "ping"},
			{Source: "ping", Target: "pong"},
			{Source: "pong", Target: "ping"},
		},
	})

	exec, err := h.dispatcher.Run(context.Background(), wfID, nil, schema.RunModeManual)
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeTerminal, engErr.Code)

	require.NotNil(t, exec)
	assert.Equal(t, schema.ExecutionStatusError, exec.Status)
	assert.NotEmpty(t, exec.Error)
}

func TestWebhookTriggerEndToEnd(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "hook", Type: "webhook-trigger"},
			{ID: "note", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "hook", Target: "note"},
		},
	})

	wh, err := h.triggers.RegisterWebhook(context.Background(), wfID)
	require.NoError(t, err)
	require.NotEmpty(t, wh.Token)

	exec, err := h.triggers.FireWebhook(context.Background(), wh.Token, map[string]any{"event": "push"})
	require.NoError(t, err)
	assert.Equal(t, schema.ExecutionStatusSuccess, exec.Status)
	assert.Equal(t, schema.RunModeWebhook, exec.Mode)

	_, err = h.triggers.FireWebhook(context.Background(), "no-such-token", nil)
	require.Error(t, err)
	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeNotFound, engErr.Code)
}

func TestLiveStreamMirrorsEventLog(t *testing.T) {
	h := newHarness(t, engine.Config{})

	wfID := h.seed(schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "note", Type: "log"},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "note"},
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, unsubscribe, err := h.hub.Subscribe(ctx, streaming.EventFilter{})
	require.NoError(t, err)
	defer unsubscribe()

	exec := h.run(wfID, nil)
	require.Equal(t, schema.ExecutionStatusSuccess, exec.Status)

	durable := h.events(exec.ID)
	require.NotEmpty(t, durable)

	// The run is done, so everything published is already buffered; the
	// workflow is small enough that nothing was dropped.
	seen := make(map[int64]string)
	timeout := time.After(2 * time.Second)
	for len(seen) < len(durable) {
		select {
		case ev := <-ch:
			if ev.ExecutionID == exec.ID {
				seen[ev.Sequence] = ev.EventType
			}
		case <-timeout:
			t.Fatalf("timed out: saw %d of %d events", len(seen), len(durable))
		}
	}

	for _, ev := range durable {
		assert.Equal(t, ev.Type, seen[ev.Sequence])
	}
}
