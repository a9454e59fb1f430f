package streaming

import "context"

// StreamEvent is a real-time copy of an execution event, pushed to
// subscribers as the event log grows.
type StreamEvent struct {
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id,omitempty"`
	EventType   string `json:"event_type"`
	Payload     any    `json:"payload,omitempty"`
	Sequence    int64  `json:"sequence"`
}

// EventFilter specifies which events a subscriber wants to receive. The
// zero value matches everything. SinceSequence lets a client that already
// read the durable log up to some sequence resume the live stream without
// duplicates: events at or below it are skipped.
type EventFilter struct {
	ExecutionID   string   `json:"execution_id,omitempty"`
	EventTypes    []string `json:"event_types,omitempty"`
	SinceSequence int64    `json:"since_sequence,omitempty"`
}

// EventHub provides pub/sub for live execution events. Delivery is
// best-effort: the event log in the store is the durable record.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
