package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

func TestRenderMermaidLinear(t *testing.T) {
	model, err := Build(linearWorkflow(), nil)
	require.NoError(t, err)

	output := RenderMermaid(model)

	// Must start with graph TD.
	assert.Contains(t, output, "graph TD")

	// Trigger uses double parens (circle), actions square brackets.
	assert.Contains(t, output, "start((")
	assert.Contains(t, output, "fetch[")
	assert.Contains(t, output, "note[")

	// Edges present.
	assert.Contains(t, output, "-->")

	// Class definitions.
	assert.Contains(t, output, "classDef success")
	assert.Contains(t, output, "classDef error")
	assert.Contains(t, output, "classDef running")
}

func TestRenderMermaidShapes(t *testing.T) {
	model, err := Build(branchingWorkflow(), nil)
	require.NoError(t, err)

	output := RenderMermaid(model)

	// Condition uses diamond, merge stadium, split double brackets.
	assert.Contains(t, output, "decide{")
	assert.Contains(t, output, "join([")
	assert.Contains(t, output, "fan[[")
}

func TestRenderMermaidBranchLabels(t *testing.T) {
	model, err := Build(branchingWorkflow(), nil)
	require.NoError(t, err)

	output := RenderMermaid(model)
	assert.Contains(t, output, "decide -->|true| yes")
	assert.Contains(t, output, "decide -->|false| no")
}

func TestRenderMermaidWithStatus(t *testing.T) {
	runs := []*store.NodeRun{
		{NodeID: "fetch", Status: schema.NodeRunSuccess},
		{NodeID: "shape", Status: schema.NodeRunRunning},
		{NodeID: "note", Status: schema.NodeRunScheduled},
	}

	model, err := Build(linearWorkflow(), runs)
	require.NoError(t, err)

	output := RenderMermaid(model)

	assert.Contains(t, output, "class fetch success")
	assert.Contains(t, output, "class shape running")
	assert.Contains(t, output, "class note scheduled")
}

func TestMermaidSafeID(t *testing.T) {
	assert.Equal(t, "a_b_c", mermaidSafeID("a.b.c"))
	assert.Equal(t, "my_node", mermaidSafeID("my-node"))
	assert.Equal(t, "simple", mermaidSafeID("simple"))
}
