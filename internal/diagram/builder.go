package diagram

import (
	"fmt"

	"github.com/nvallejo/weft/internal/graph"
	"github.com/nvallejo/weft/internal/nodes"
	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

// Build constructs a Model from a workflow and optional node runs. It
// compiles the definition for topology, so a definition that does not
// compile does not render either.
func Build(wf *store.Workflow, runs []*store.NodeRun) (*Model, error) {
	g, err := graph.Compile(&wf.Definition)
	if err != nil {
		return nil, fmt.Errorf("diagram: compile workflow: %w", err)
	}

	runMap := make(map[string]*store.NodeRun, len(runs))
	for _, r := range runs {
		runMap[r.NodeID] = r
	}

	// Nodes in declaration order.
	out := make([]*Node, 0, len(wf.Definition.Nodes))
	for i := range wf.Definition.Nodes {
		spec := &wf.Definition.Nodes[i]
		node := &Node{
			ID:    spec.ID,
			Label: nodeLabel(spec),
			Kind:  typeToKind(spec.Type),
		}
		if run, ok := runMap[spec.ID]; ok {
			node.Status = &StatusOverlay{
				Status:     string(run.Status),
				DurationMs: run.DurationMs,
				Attempt:    run.Attempt,
				Error:      run.Error,
			}
		}
		out = append(out, node)
	}

	return &Model{
		Title:  titleFor(wf),
		Nodes:  out,
		Edges:  buildEdges(&wf.Definition),
		Levels: buildLevels(&wf.Definition, g),
	}, nil
}

// typeToKind maps a workflow node type to a diagram NodeKind.
func typeToKind(nodeType string) NodeKind {
	switch nodeType {
	case nodes.TypeTrigger, nodes.TypeManualTrigger, nodes.TypeWebhookTrigger, nodes.TypeScheduleTrigger:
		return NodeKindTrigger
	case nodes.TypeIf, nodes.TypeSwitch:
		return NodeKindCondition
	case nodes.TypeMerge:
		return NodeKindMerge
	case nodes.TypeSplit:
		return NodeKindSplit
	default:
		return NodeKindAction
	}
}

// nodeLabel creates a human-readable label for a node.
func nodeLabel(spec *schema.NodeSpec) string {
	if spec.Name != "" && spec.Name != spec.ID {
		return fmt.Sprintf("%s\n(%s)", spec.Name, spec.Type)
	}
	return fmt.Sprintf("%s\n(%s)", spec.ID, spec.Type)
}

// buildEdges converts definition connections to diagram edges, carrying
// branch handles as labels.
func buildEdges(def *schema.WorkflowDefinition) []Edge {
	edges := make([]Edge, 0, len(def.Connections))
	for _, conn := range def.Connections {
		edges = append(edges, Edge{
			From:  conn.Source,
			To:    conn.Target,
			Label: conn.SourceHandle,
		})
	}
	return edges
}

// buildLevels lays nodes out breadth-first from the trigger set. Cycles
// are legal in a definition, so each node is placed once at the depth it
// is first reached; nodes unreachable from any trigger form a final row.
func buildLevels(def *schema.WorkflowDefinition, g *graph.ExecutionGraph) [][]string {
	placed := make(map[string]bool, len(def.Nodes))
	var levels [][]string

	frontier := append([]string(nil), g.Triggers...)
	for len(frontier) > 0 {
		var level, next []string
		for _, id := range frontier {
			if placed[id] {
				continue
			}
			placed[id] = true
			level = append(level, id)
			for _, conn := range g.AllSuccessors(id) {
				if !placed[conn.Target] {
					next = append(next, conn.Target)
				}
			}
		}
		if len(level) > 0 {
			levels = append(levels, level)
		}
		frontier = next
	}

	var orphans []string
	for i := range def.Nodes {
		if !placed[def.Nodes[i].ID] {
			orphans = append(orphans, def.Nodes[i].ID)
		}
	}
	if len(orphans) > 0 {
		levels = append(levels, orphans)
	}

	return levels
}

// titleFor picks a diagram title from workflow metadata.
func titleFor(wf *store.Workflow) string {
	if wf.Name != "" {
		return wf.Name
	}
	return wf.ID
}
