package schema

// WorkflowDefinition is the JSON-serializable workflow graph format.
// It is owned by the workflow entity and treated as read-only by the
// execution core: a run operates on an immutable snapshot of it.
type WorkflowDefinition struct {
	Nodes       []NodeSpec `json:"nodes"`
	Connections []Edge     `json:"connections"`
}

// NodeSpec describes a single node in a workflow definition.
type NodeSpec struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Edge is a directed, optionally labeled connection between two nodes.
// SourceHandle selects which output branch of a multi-output node the
// edge follows ("true"/"false" for conditionals, a case label for
// switch); it is empty for single-output nodes.
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// Branch handle labels used by multi-output nodes.
const (
	BranchTrue    = "true"
	BranchFalse   = "false"
	BranchDefault = "default"
)

// FindNode returns the spec for the given node id, or nil if absent.
func (d *WorkflowDefinition) FindNode(id string) *NodeSpec {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}
