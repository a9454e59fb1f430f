package diagram

// NodeKind classifies a diagram node by its workflow node type.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindAction    NodeKind = "action"
	NodeKindCondition NodeKind = "condition"
	NodeKindMerge     NodeKind = "merge"
	NodeKindSplit     NodeKind = "split"
)

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single workflow node in the diagram.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status *StatusOverlay
}

// StatusOverlay carries runtime state for a node from its last run.
type StatusOverlay struct {
	Status     string // from schema.NodeRunStatus
	DurationMs int64
	Attempt    int
	Error      string
}

// Edge represents a connection between two nodes. Label carries the
// branch handle for conditional edges ("true", a switch case name).
type Edge struct {
	From  string
	To    string
	Label string
}
