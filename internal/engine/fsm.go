package engine

import (
	"context"
	"sync"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

// EventAppender is satisfied by the Store; FSMs emit an event on every
// validated transition so the event log is a faithful history.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

// --- Execution FSM ---

// ExecutionFSM manages execution lifecycle state transitions.
type ExecutionFSM struct {
	mu       sync.Mutex
	appender EventAppender
}

// NewExecutionFSM creates an ExecutionFSM that emits events via the given
// appender.
func NewExecutionFSM(appender EventAppender) *ExecutionFSM {
	return &ExecutionFSM{appender: appender}
}

// Transition validates and executes an execution state transition. The
// caller persists the new state; the FSM only validates and emits.
func (f *ExecutionFSM) Transition(ctx context.Context, executionID string, from, to schema.ExecutionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidExecutionTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid execution transition: %s -> %s", from, to).
			WithDetails(map[string]any{"execution_id": executionID, "from": string(from), "to": string(to)})
	}

	eventType := executionEventType(to)
	if eventType != "" {
		event := &store.Event{
			ExecutionID: executionID,
			Type:        eventType,
		}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit execution event: %s", err.Error()).WithCause(err)
		}
	}
	return nil
}

func isValidExecutionTransition(from, to schema.ExecutionStatus) bool {
	allowed, ok := ValidExecutionTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

func executionEventType(to schema.ExecutionStatus) string {
	switch to {
	case schema.ExecutionStatusRunning:
		return schema.EventExecutionStarted
	case schema.ExecutionStatusSuccess:
		return schema.EventExecutionFinished
	case schema.ExecutionStatusError:
		return schema.EventExecutionFailed
	case schema.ExecutionStatusCanceled:
		return schema.EventExecutionCanceled
	default:
		return ""
	}
}

// --- Node run FSM ---

// NodeRunFSM manages node run lifecycle state transitions.
type NodeRunFSM struct {
	mu       sync.Mutex
	appender EventAppender
}

// NewNodeRunFSM creates a NodeRunFSM that emits events via the given
// appender.
func NewNodeRunFSM(appender EventAppender) *NodeRunFSM {
	return &NodeRunFSM{appender: appender}
}

// Transition validates and executes a node run state transition.
func (f *NodeRunFSM) Transition(ctx context.Context, executionID, nodeID string, from, to schema.NodeRunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !isValidNodeRunTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid node run transition: %s -> %s", from, to).
			WithNode(nodeID).
			WithDetails(map[string]any{"execution_id": executionID, "from": string(from), "to": string(to)})
	}

	eventType := nodeRunEventType(to)
	if eventType != "" {
		event := &store.Event{
			ExecutionID: executionID,
			NodeID:      nodeID,
			Type:        eventType,
		}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit node event: %s", err.Error()).
				WithNode(nodeID).WithCause(err)
		}
	}
	return nil
}

func isValidNodeRunTransition(from, to schema.NodeRunStatus) bool {
	allowed, ok := ValidNodeRunTransitions[from]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == to {
			return true
		}
	}
	return false
}

func nodeRunEventType(to schema.NodeRunStatus) string {
	switch to {
	case schema.NodeRunScheduled:
		return schema.EventNodeScheduled
	case schema.NodeRunRunning:
		return schema.EventNodeStarted
	case schema.NodeRunSuccess:
		return schema.EventNodeCompleted
	case schema.NodeRunError:
		return schema.EventNodeFailed
	case schema.NodeRunRetrying:
		return schema.EventNodeRetrying
	default:
		return ""
	}
}

// --- Transition tables ---

// ValidExecutionTransitions defines the allowed state transitions for
// executions. Terminal states have no exits.
var ValidExecutionTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending:  {schema.ExecutionStatusRunning, schema.ExecutionStatusSuccess, schema.ExecutionStatusCanceled},
	schema.ExecutionStatusRunning:  {schema.ExecutionStatusSuccess, schema.ExecutionStatusError, schema.ExecutionStatusCanceled},
	schema.ExecutionStatusSuccess:  {},
	schema.ExecutionStatusError:    {},
	schema.ExecutionStatusCanceled: {},
}

// ValidNodeRunTransitions defines the allowed state transitions for node
// runs within an execution.
var ValidNodeRunTransitions = map[schema.NodeRunStatus][]schema.NodeRunStatus{
	schema.NodeRunScheduled: {schema.NodeRunRunning, schema.NodeRunError},
	schema.NodeRunRunning:   {schema.NodeRunSuccess, schema.NodeRunError, schema.NodeRunRetrying},
	schema.NodeRunRetrying:  {schema.NodeRunRunning, schema.NodeRunError},
	schema.NodeRunSuccess:   {},
	schema.NodeRunError:     {},
}
