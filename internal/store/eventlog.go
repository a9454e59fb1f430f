package store

import (
	"context"
	"fmt"

	"github.com/nvallejo/weft/pkg/schema"
)

// EventLog provides replay and integrity checks over the per-execution
// event stream persisted by a Store.
type EventLog struct {
	store Store
}

// NewEventLog wraps a Store for event replay.
func NewEventLog(s Store) *EventLog {
	return &EventLog{store: s}
}

// Append records an event. The store assigns the next per-execution
// sequence number.
func (el *EventLog) Append(ctx context.Context, event *Event) error {
	return el.store.AppendEvent(ctx, event)
}

// Events returns events for an execution with sequence > since, ordered
// by sequence.
func (el *EventLog) Events(ctx context.Context, executionID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, executionID, since)
}

// Replay rebuilds the node-run view of an execution from its event stream.
// Returns an error if sequence gaps are detected: the log must be
// contiguous to be a faithful history.
func (el *EventLog) Replay(ctx context.Context, executionID string) (map[string]*NodeRun, error) {
	events, err := el.store.GetEvents(ctx, executionID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	runs := make(map[string]*NodeRun)
	if len(events) == 0 {
		return runs, nil
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in execution %s: expected %d, got %d", executionID, expected, e.Sequence)
		}
	}

	for _, e := range events {
		if e.NodeID == "" {
			continue
		}

		nr, ok := runs[e.NodeID]
		if !ok {
			nr = &NodeRun{
				ExecutionID: executionID,
				NodeID:      e.NodeID,
				Status:      schema.NodeRunScheduled,
			}
			runs[e.NodeID] = nr
		}

		switch e.Type {
		case schema.EventNodeScheduled:
			nr.Status = schema.NodeRunScheduled

		case schema.EventNodeStarted:
			nr.Status = schema.NodeRunRunning
			ts := e.Timestamp
			nr.StartedAt = &ts

		case schema.EventNodeCompleted:
			nr.Status = schema.NodeRunSuccess
			ts := e.Timestamp
			nr.FinishedAt = &ts
			nr.Output = e.Payload
			if nr.StartedAt != nil {
				nr.DurationMs = ts.Sub(*nr.StartedAt).Milliseconds()
			}

		case schema.EventNodeFailed:
			nr.Status = schema.NodeRunError
			ts := e.Timestamp
			nr.FinishedAt = &ts

		case schema.EventNodeRetrying:
			nr.Status = schema.NodeRunRetrying
			nr.Attempt++
		}
	}

	return runs, nil
}
