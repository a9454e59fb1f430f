package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

func linearWorkflow() *store.Workflow {
	return &store.Workflow{
		ID:   "wf-linear",
		Name: "ETL",
		Definition: schema.WorkflowDefinition{
			Nodes: []schema.NodeSpec{
				{ID: "start", Type: "manual-trigger"},
				{ID: "fetch", Type: "http-request", Parameters: map[string]any{"url": "https://example.com"}},
				{ID: "shape", Type: "data-transform"},
				{ID: "note", Type: "log"},
			},
			Connections: []schema.Edge{
				{Source: "start", Target: "fetch"},
				{Source: "fetch", Target: "shape"},
				{Source: "shape", Target: "note"},
			},
		},
	}
}

func branchingWorkflow() *store.Workflow {
	return &store.Workflow{
		ID:   "wf-branch",
		Name: "Routing",
		Definition: schema.WorkflowDefinition{
			Nodes: []schema.NodeSpec{
				{ID: "start", Type: "manual-trigger"},
				{ID: "decide", Type: "if", Parameters: map[string]any{"condition": "input.ok"}},
				{ID: "yes", Type: "log"},
				{ID: "no", Type: "log"},
				{ID: "join", Type: "merge"},
				{ID: "fan", Type: "split", Parameters: map[string]any{"field": "items"}},
			},
			Connections: []schema.Edge{
				{Source: "start", Target: "decide"},
				{Source: "decide", Target: "yes", SourceHandle: "true"},
				{Source: "decide", Target: "no", SourceHandle: "false"},
				{Source: "yes", Target: "join"},
				{Source: "no", Target: "join"},
				{Source: "join", Target: "fan"},
			},
		},
	}
}

func TestBuildLinear(t *testing.T) {
	model, err := Build(linearWorkflow(), nil)
	require.NoError(t, err)

	assert.Equal(t, "ETL", model.Title)
	require.Len(t, model.Nodes, 4)

	// Declaration order preserved.
	assert.Equal(t, "start", model.Nodes[0].ID)
	assert.Equal(t, NodeKindTrigger, model.Nodes[0].Kind)
	assert.Equal(t, "fetch", model.Nodes[1].ID)
	assert.Equal(t, NodeKindAction, model.Nodes[1].Kind)

	require.Len(t, model.Edges, 3)
	assert.Equal(t, Edge{From: "start", To: "fetch"}, model.Edges[0])

	// One node per level for a linear chain.
	require.Len(t, model.Levels, 4)
	assert.Equal(t, []string{"start"}, model.Levels[0])
	assert.Equal(t, []string{"note"}, model.Levels[3])
}

func TestBuildKinds(t *testing.T) {
	model, err := Build(branchingWorkflow(), nil)
	require.NoError(t, err)

	kinds := make(map[string]NodeKind, len(model.Nodes))
	for _, n := range model.Nodes {
		kinds[n.ID] = n.Kind
	}
	assert.Equal(t, NodeKindTrigger, kinds["start"])
	assert.Equal(t, NodeKindCondition, kinds["decide"])
	assert.Equal(t, NodeKindAction, kinds["yes"])
	assert.Equal(t, NodeKindMerge, kinds["join"])
	assert.Equal(t, NodeKindSplit, kinds["fan"])
}

func TestBuildBranchLabels(t *testing.T) {
	model, err := Build(branchingWorkflow(), nil)
	require.NoError(t, err)

	var labels []string
	for _, e := range model.Edges {
		if e.From == "decide" {
			labels = append(labels, e.Label)
		}
	}
	assert.Equal(t, []string{"true", "false"}, labels)
}

func TestBuildStatusOverlay(t *testing.T) {
	runs := []*store.NodeRun{
		{NodeID: "fetch", Status: schema.NodeRunSuccess, DurationMs: 120, Attempt: 1},
		{NodeID: "shape", Status: schema.NodeRunError, Error: "boom", Attempt: 3},
	}

	model, err := Build(linearWorkflow(), runs)
	require.NoError(t, err)

	byID := make(map[string]*Node)
	for _, n := range model.Nodes {
		byID[n.ID] = n
	}

	require.NotNil(t, byID["fetch"].Status)
	assert.Equal(t, "success", byID["fetch"].Status.Status)
	assert.Equal(t, int64(120), byID["fetch"].Status.DurationMs)

	require.NotNil(t, byID["shape"].Status)
	assert.Equal(t, "error", byID["shape"].Status.Status)
	assert.Equal(t, "boom", byID["shape"].Status.Error)
	assert.Equal(t, 3, byID["shape"].Status.Attempt)

	assert.Nil(t, byID["start"].Status)
	assert.Nil(t, byID["note"].Status)
}

func TestBuildCyclicDefinition(t *testing.T) {
	wf := &store.Workflow{
		ID: "wf-cycle",
		Definition: schema.WorkflowDefinition{
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
		},
	}

	model, err := Build(wf, nil)
	require.NoError(t, err)

	// Every node placed exactly once despite the cycle.
	seen := make(map[string]int)
	for _, level := range model.Levels {
		for _, id := range level {
			seen[id]++
		}
	}
	assert.Equal(t, map[string]int{"start": 1, "ping": 1, "pong": 1}, seen)
}

func TestBuildOrphanNodes(t *testing.T) {
	// A pure two-node cycle is unreachable from any trigger.
	wf := &store.Workflow{
		ID: "wf-orphan",
		Definition: schema.WorkflowDefinition{
			Nodes: []schema.NodeSpec{
				{ID: "start", Type: "manual-trigger"},
				{ID: "a", Type: "log"},
				{ID: "b", Type: "log"},
			},
			Connections: []schema.Edge{
				{Source: "a", Target: "b"},
				{Source: "b", Target: "a"},
			},
		},
	}

	model, err := Build(wf, nil)
	require.NoError(t, err)

	last := model.Levels[len(model.Levels)-1]
	assert.ElementsMatch(t, []string{"a", "b"}, last)
}

func TestBuildInvalidDefinition(t *testing.T) {
	wf := &store.Workflow{
		ID: "wf-bad",
		Definition: schema.WorkflowDefinition{
			Nodes: []schema.NodeSpec{
				{ID: "start", Type: "manual-trigger"},
			},
			Connections: []schema.Edge{
				{Source: "start", Target: "ghost"},
			},
		},
	}

	_, err := Build(wf, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}
