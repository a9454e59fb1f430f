package streaming

import (
	"context"
	"encoding/json"

	"github.com/nvallejo/weft/internal/store"
)

// TappedStore wraps a store so every appended event is also published to
// an EventHub. The store stays the durable record; the hub only mirrors
// it for live subscribers.
type TappedStore struct {
	store.Store
	hub EventHub
}

// NewTappedStore wraps inner so appends fan out to hub.
func NewTappedStore(inner store.Store, hub EventHub) *TappedStore {
	return &TappedStore{Store: inner, hub: hub}
}

// AppendEvent appends to the underlying store, then publishes the event.
// Publish failures are ignored: a dead subscriber must not fail a run.
func (t *TappedStore) AppendEvent(ctx context.Context, event *store.Event) error {
	if err := t.Store.AppendEvent(ctx, event); err != nil {
		return err
	}

	var payload any
	if len(event.Payload) > 0 {
		_ = json.Unmarshal(event.Payload, &payload)
	}
	_ = t.hub.Publish(ctx, StreamEvent{
		ExecutionID: event.ExecutionID,
		NodeID:      event.NodeID,
		EventType:   event.Type,
		Payload:     payload,
		Sequence:    event.Sequence,
	})
	return nil
}
