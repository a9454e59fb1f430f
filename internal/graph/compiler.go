package graph

import (
	"fmt"

	"github.com/nvallejo/weft/pkg/schema"
)

// Connection is a single outgoing hop in the compiled graph: the target node
// plus the branch label the hop is attached to ("" for unconditional edges).
type Connection struct {
	Target       string
	SourceHandle string
}

// ExecutionGraph is the in-memory representation of a workflow, built once
// per run and consulted by the dispatcher to route outputs to successors.
// Adjacency preserves the declaration order of the definition's connections.
type ExecutionGraph struct {
	Nodes     map[string]*schema.NodeSpec // node ID → spec
	Adjacency map[string][]Connection     // node ID → ordered outgoing connections
	Triggers  []string                    // nodes with no incoming connection, in declaration order
}

// Compile builds an ExecutionGraph from a WorkflowDefinition.
// It registers the nodes, validates that every connection endpoint references
// a declared node, builds adjacency lists, and derives the trigger set as the
// nodes no connection targets. Cycles are not rejected here: termination is
// the dispatcher's concern, since a graph is only traversed as far as node
// outputs actually flow.
func Compile(def *schema.WorkflowDefinition) (*ExecutionGraph, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeCompile, "workflow definition is nil")
	}

	g := &ExecutionGraph{
		Nodes:     make(map[string]*schema.NodeSpec, len(def.Nodes)),
		Adjacency: make(map[string][]Connection, len(def.Nodes)),
	}

	// First pass: register all nodes and check for duplicates.
	for i := range def.Nodes {
		node := &def.Nodes[i]

		if node.ID == "" {
			return nil, schema.NewError(schema.ErrCodeCompile, fmt.Sprintf("node at index %d has empty ID", i))
		}

		if _, exists := g.Nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeCompile, "duplicate node ID: %s", node.ID)
		}

		g.Nodes[node.ID] = node
		g.Adjacency[node.ID] = nil
	}

	// Second pass: build adjacency lists, preserving connection declaration
	// order, and validate both endpoints of every connection.
	hasIncoming := make(map[string]bool, len(def.Nodes))
	for i, conn := range def.Connections {
		if conn.Source == "" || conn.Target == "" {
			return nil, schema.NewErrorf(schema.ErrCodeCompile,
				"connection at index %d has empty source or target", i)
		}
		if _, exists := g.Nodes[conn.Source]; !exists {
			return nil, schema.NewErrorf(schema.ErrCodeCompile,
				"connection references unknown source node: %s", conn.Source)
		}
		if _, exists := g.Nodes[conn.Target]; !exists {
			return nil, schema.NewErrorf(schema.ErrCodeCompile,
				"connection references unknown target node: %s", conn.Target)
		}

		g.Adjacency[conn.Source] = append(g.Adjacency[conn.Source], Connection{
			Target:       conn.Target,
			SourceHandle: conn.SourceHandle,
		})
		hasIncoming[conn.Target] = true
	}

	// Trigger set: nodes nothing points at, in declaration order. A workflow
	// with no triggers is valid and simply has nothing to run.
	for i := range def.Nodes {
		if !hasIncoming[def.Nodes[i].ID] {
			g.Triggers = append(g.Triggers, def.Nodes[i].ID)
		}
	}

	return g, nil
}

// Successors returns the outgoing connections of a node whose SourceHandle
// matches the given branch. Unconditional connections (empty handle) always
// match. Order follows the definition's connection order.
func (g *ExecutionGraph) Successors(nodeID, branch string) []Connection {
	conns := g.Adjacency[nodeID]
	if len(conns) == 0 {
		return nil
	}

	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if c.SourceHandle == "" || c.SourceHandle == branch {
			out = append(out, c)
		}
	}
	return out
}

// AllSuccessors returns every outgoing connection of a node regardless of
// branch label.
func (g *ExecutionGraph) AllSuccessors(nodeID string) []Connection {
	return g.Adjacency[nodeID]
}

// Node returns the spec for a node ID, or nil if absent.
func (g *ExecutionGraph) Node(id string) *schema.NodeSpec {
	return g.Nodes[id]
}
