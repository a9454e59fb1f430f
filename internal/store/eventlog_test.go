package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/pkg/schema"
)

func newTestEventLog(t *testing.T) (*EventLog, *LibSQLStore, string) {
	t.Helper()
	s := newTestStore(t)
	wf := seedWorkflow(t, s)
	ex := seedExecution(t, s, wf.ID)
	return NewEventLog(s), s, ex.ID
}

func TestEventLog_Append_MonotonicSequence(t *testing.T) {
	el, _, execID := newTestEventLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := &Event{
			ExecutionID: execID,
			NodeID:      "n1",
			Type:        schema.EventNodeStarted,
		}
		require.NoError(t, el.Append(ctx, e))
		assert.Equal(t, int64(i+1), e.Sequence, "sequence should be monotonic")
	}
}

func TestEventLog_Events_Since(t *testing.T) {
	el, _, execID := newTestEventLog(t)
	ctx := context.Background()

	for _, et := range []string{schema.EventNodeScheduled, schema.EventNodeStarted, schema.EventNodeCompleted} {
		require.NoError(t, el.Append(ctx, &Event{
			ExecutionID: execID, NodeID: "n1", Type: et,
		}))
	}

	events, err := el.Events(ctx, execID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	events, err = el.Events(ctx, execID, 1)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].Sequence)
}

func TestEventLog_Replay(t *testing.T) {
	el, _, execID := newTestEventLog(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	events := []*Event{
		{ExecutionID: execID, Type: schema.EventExecutionStarted, Timestamp: base},
		{ExecutionID: execID, NodeID: "n1", Type: schema.EventNodeStarted, Timestamp: base},
		{ExecutionID: execID, NodeID: "n1", Type: schema.EventNodeCompleted,
			Payload: json.RawMessage(`{"status":"success"}`), Timestamp: base.Add(2 * time.Second)},
		{ExecutionID: execID, NodeID: "n2", Type: schema.EventNodeStarted, Timestamp: base},
		{ExecutionID: execID, NodeID: "n2", Type: schema.EventNodeFailed, Timestamp: base.Add(time.Second)},
	}
	for _, e := range events {
		require.NoError(t, el.Append(ctx, e))
	}

	runs, err := el.Replay(ctx, execID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, schema.NodeRunSuccess, runs["n1"].Status)
	assert.JSONEq(t, `{"status":"success"}`, string(runs["n1"].Output))
	assert.Equal(t, int64(2000), runs["n1"].DurationMs)

	assert.Equal(t, schema.NodeRunError, runs["n2"].Status)
	assert.NotNil(t, runs["n2"].FinishedAt)
}

func TestEventLog_Replay_Retries(t *testing.T) {
	el, _, execID := newTestEventLog(t)
	ctx := context.Background()

	for _, et := range []string{
		schema.EventNodeStarted,
		schema.EventNodeRetrying,
		schema.EventNodeRetrying,
		schema.EventNodeCompleted,
	} {
		require.NoError(t, el.Append(ctx, &Event{ExecutionID: execID, NodeID: "n1", Type: et}))
	}

	runs, err := el.Replay(ctx, execID)
	require.NoError(t, err)
	assert.Equal(t, schema.NodeRunSuccess, runs["n1"].Status)
	assert.Equal(t, 2, runs["n1"].Attempt)
}

func TestEventLog_Replay_Empty(t *testing.T) {
	el, _, _ := newTestEventLog(t)

	runs, err := el.Replay(context.Background(), uuid.New().String())
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEventLog_Replay_SequenceGap(t *testing.T) {
	el, s, execID := newTestEventLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, el.Append(ctx, &Event{ExecutionID: execID, NodeID: "n1", Type: schema.EventNodeStarted}))
	}
	// Punch a hole in the sequence.
	_, err := s.DB().ExecContext(ctx, `DELETE FROM events WHERE execution_id = ? AND sequence = 2`, execID)
	require.NoError(t, err)

	_, err = el.Replay(ctx, execID)
	require.Error(t, err)
	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeStore, engErr.Code)
}
