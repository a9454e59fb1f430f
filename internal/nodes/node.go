package nodes

import (
	"context"
	"encoding/json"

	"github.com/nvallejo/weft/pkg/schema"
)

// Node is an executable unit of work within a workflow graph.
// Execute must be a pure function of (parameters, input) plus any declared
// external effect (an HTTP call, a log line); it never touches the execution
// record, which is the dispatcher's job.
type Node interface {
	ID() string
	Name() string
	Type() string
	Parameters() map[string]any

	Execute(ctx context.Context, input map[string]any) (*Result, error)

	// Validate checks the node's configured parameters at compile time.
	// Most node types accept anything; strict types opt in.
	Validate() error
}

// ResultStatus is the outcome of a single node execution.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// Result is the common envelope returned by executing one node. Branch
// routing fields are only meaningful for the node types that set them:
// ConditionResult for conditional nodes, OutputBranch for switch nodes,
// IsSplit + Items for split nodes.
type Result struct {
	Status   ResultStatus   `json:"status"`
	Data     map[string]any `json:"data,omitempty"`
	NodeID   string         `json:"nodeId"`
	NodeType string         `json:"nodeType"`
	Error    string         `json:"error,omitempty"`

	ConditionResult bool   `json:"conditionResult,omitempty"`
	OutputBranch    string `json:"outputBranch,omitempty"`
	IsSplit         bool   `json:"isSplit,omitempty"`
	Items           []any  `json:"items,omitempty"`
}

// Branch returns the branch label the dispatcher should follow out of this
// result: "true"/"false" for conditionals, the matched case for switch, ""
// for everything else.
func (r *Result) Branch() string {
	if r.OutputBranch != "" {
		return r.OutputBranch
	}
	return ""
}

// success builds a success result for a node.
func success(n Node, data map[string]any) *Result {
	return &Result{
		Status:   StatusSuccess,
		Data:     data,
		NodeID:   n.ID(),
		NodeType: n.Type(),
	}
}

// failure builds an error result for an expected, non-retryable node
// failure (bad configuration, missing input field). These are recorded as
// node outcomes, not raised as errors.
func failure(n Node, message string) *Result {
	return &Result{
		Status:   StatusError,
		NodeID:   n.ID(),
		NodeType: n.Type(),
		Error:    message,
	}
}

// base carries the identity every node shares. Variants embed it and add
// their own behavior.
type base struct {
	id     string
	name   string
	params map[string]any
}

func newBase(spec *schema.NodeSpec) base {
	return base{id: spec.ID, name: spec.Name, params: spec.Parameters}
}

func (b *base) ID() string                 { return b.id }
func (b *base) Name() string               { return b.name }
func (b *base) Parameters() map[string]any { return b.params }

// Validate accepts any parameter set. Strict node types override this.
func (b *base) Validate() error { return nil }

// --- param helpers shared by all node files ---

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func mapParam(m map[string]any, key string) map[string]any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	mm, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return mm
}

func sliceParam(m map[string]any, key string) []any {
	v, ok := m[key]
	if !ok {
		return nil
	}
	s, ok := v.([]any)
	if !ok {
		return nil
	}
	return s
}

func intParam(m map[string]any, key string, defaultVal int) int {
	v, ok := m[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return defaultVal
		}
		return int(i)
	default:
		return defaultVal
	}
}
