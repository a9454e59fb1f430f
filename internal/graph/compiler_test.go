package graph

import (
	"testing"

	"github.com/nvallejo/weft/pkg/schema"
)

// --- helpers ---

func node(id, nodeType string) schema.NodeSpec {
	return schema.NodeSpec{
		ID:   id,
		Type: nodeType,
		Name: id,
	}
}

func edge(source, target string) schema.Edge {
	return schema.Edge{Source: source, Target: target}
}

func branchEdge(source, target, handle string) schema.Edge {
	return schema.Edge{Source: source, Target: target, SourceHandle: handle}
}

func assertCompileError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	engErr, ok := err.(*schema.EngineError)
	if !ok {
		t.Fatalf("expected EngineError, got %T: %v", err, err)
	}
	if engErr.Code != schema.ErrCodeCompile {
		t.Errorf("expected code %s, got %s: %s", schema.ErrCodeCompile, engErr.Code, engErr.Message)
	}
}

// --- structure tests ---

func TestCompile_LinearChain(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "trigger"),
			node("b", "log"),
			node("c", "log"),
		},
		Connections: []schema.Edge{
			edge("a", "b"),
			edge("b", "c"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Triggers) != 1 || g.Triggers[0] != "a" {
		t.Errorf("expected triggers=[a], got %v", g.Triggers)
	}
	if len(g.Adjacency["a"]) != 1 || g.Adjacency["a"][0].Target != "b" {
		t.Errorf("expected a→b, got %v", g.Adjacency["a"])
	}
	if len(g.Adjacency["b"]) != 1 || g.Adjacency["b"][0].Target != "c" {
		t.Errorf("expected b→c, got %v", g.Adjacency["b"])
	}
	if len(g.Adjacency["c"]) != 0 {
		t.Errorf("expected c to be a leaf, got %v", g.Adjacency["c"])
	}
}

func TestCompile_MultipleTriggers(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("t1", "trigger"),
			node("t2", "trigger"),
			node("work", "log"),
		},
		Connections: []schema.Edge{
			edge("t1", "work"),
			edge("t2", "work"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Triggers) != 2 || g.Triggers[0] != "t1" || g.Triggers[1] != "t2" {
		t.Errorf("expected triggers=[t1 t2], got %v", g.Triggers)
	}
}

func TestCompile_TriggerSetIsNodesWithoutIncomingEdges(t *testing.T) {
	// A node's declared type does not matter: trigger status is purely
	// structural. Even a log node with no incoming edge is a trigger.
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("orphan", "log"),
			node("a", "trigger"),
			node("b", "log"),
		},
		Connections: []schema.Edge{
			edge("a", "b"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Triggers) != 2 || g.Triggers[0] != "orphan" || g.Triggers[1] != "a" {
		t.Errorf("expected triggers=[orphan a] in declaration order, got %v", g.Triggers)
	}
}

func TestCompile_EmptyTriggerSet(t *testing.T) {
	// Every node has an incoming edge (a 2-cycle). The graph compiles and
	// the trigger set is empty.
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "log"),
			node("b", "log"),
		},
		Connections: []schema.Edge{
			edge("a", "b"),
			edge("b", "a"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(g.Triggers) != 0 {
		t.Errorf("expected no triggers, got %v", g.Triggers)
	}
}

func TestCompile_CyclesAreNotRejected(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("t", "trigger"),
			node("a", "log"),
			node("b", "log"),
		},
		Connections: []schema.Edge{
			edge("t", "a"),
			edge("a", "b"),
			edge("b", "a"),
		},
	}

	if _, err := Compile(def); err != nil {
		t.Fatalf("cycle should compile, got error: %v", err)
	}
}

func TestCompile_EdgeOrderPreserved(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("src", "trigger"),
			node("x", "log"),
			node("y", "log"),
			node("z", "log"),
		},
		Connections: []schema.Edge{
			edge("src", "z"),
			edge("src", "x"),
			edge("src", "y"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := g.Adjacency["src"]
	want := []string{"z", "x", "y"}
	if len(got) != len(want) {
		t.Fatalf("expected %d connections, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Target != w {
			t.Errorf("connection %d: expected %s, got %s", i, w, got[i].Target)
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("t", "trigger"),
			node("a", "log"),
			node("b", "log"),
		},
		Connections: []schema.Edge{
			edge("t", "a"),
			edge("t", "b"),
		},
	}

	first, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for range 10 {
		g, err := Compile(def)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(g.Triggers) != len(first.Triggers) {
			t.Fatalf("trigger count changed between compiles")
		}
		for i := range g.Triggers {
			if g.Triggers[i] != first.Triggers[i] {
				t.Errorf("trigger order changed: %v vs %v", g.Triggers, first.Triggers)
			}
		}
		for id := range first.Adjacency {
			a, b := first.Adjacency[id], g.Adjacency[id]
			if len(a) != len(b) {
				t.Fatalf("adjacency of %s changed length", id)
			}
			for i := range a {
				if a[i] != b[i] {
					t.Errorf("adjacency of %s changed at %d: %v vs %v", id, i, a[i], b[i])
				}
			}
		}
	}
}

// --- validation tests ---

func TestCompile_NilDefinition(t *testing.T) {
	_, err := Compile(nil)
	assertCompileError(t, err)
}

func TestCompile_EmptyNodeID(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{{Type: "log"}},
	}
	_, err := Compile(def)
	assertCompileError(t, err)
}

func TestCompile_DuplicateNodeID(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "trigger"),
			node("a", "log"),
		},
	}
	_, err := Compile(def)
	assertCompileError(t, err)
}

func TestCompile_UnknownSourceNode(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "trigger"),
		},
		Connections: []schema.Edge{
			edge("ghost", "a"),
		},
	}
	_, err := Compile(def)
	assertCompileError(t, err)
}

func TestCompile_UnknownTargetNode(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "trigger"),
		},
		Connections: []schema.Edge{
			edge("a", "ghost"),
		},
	}
	_, err := Compile(def)
	assertCompileError(t, err)
}

func TestCompile_EmptyConnectionEndpoint(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("a", "trigger"),
		},
		Connections: []schema.Edge{
			{Source: "a", Target: ""},
		},
	}
	_, err := Compile(def)
	assertCompileError(t, err)
}

func TestCompile_EmptyWorkflow(t *testing.T) {
	g, err := Compile(&schema.WorkflowDefinition{})
	if err != nil {
		t.Fatalf("empty workflow should compile, got error: %v", err)
	}
	if len(g.Triggers) != 0 {
		t.Errorf("expected no triggers, got %v", g.Triggers)
	}
}

// --- successor routing ---

func TestSuccessors_BranchFiltering(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			node("cond", "if"),
			node("yes", "log"),
			node("no", "log"),
			node("always", "log"),
		},
		Connections: []schema.Edge{
			branchEdge("cond", "yes", schema.BranchTrue),
			branchEdge("cond", "no", schema.BranchFalse),
			edge("cond", "always"),
		},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("true branch", func(t *testing.T) {
		succ := g.Successors("cond", schema.BranchTrue)
		if len(succ) != 2 || succ[0].Target != "yes" || succ[1].Target != "always" {
			t.Errorf("expected [yes always], got %v", succ)
		}
	})

	t.Run("false branch", func(t *testing.T) {
		succ := g.Successors("cond", schema.BranchFalse)
		if len(succ) != 2 || succ[0].Target != "no" || succ[1].Target != "always" {
			t.Errorf("expected [no always], got %v", succ)
		}
	})

	t.Run("unmatched branch", func(t *testing.T) {
		succ := g.Successors("cond", "other")
		if len(succ) != 1 || succ[0].Target != "always" {
			t.Errorf("expected [always], got %v", succ)
		}
	})
}

func TestSuccessors_LeafNode(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{node("a", "trigger")},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if succ := g.Successors("a", ""); succ != nil {
		t.Errorf("expected nil successors for leaf, got %v", succ)
	}
}

func TestNode_Lookup(t *testing.T) {
	def := &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{node("a", "trigger")},
	}

	g, err := Compile(def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Node("a") == nil {
		t.Error("expected node a to be present")
	}
	if g.Node("missing") != nil {
		t.Error("expected nil for missing node")
	}
}
