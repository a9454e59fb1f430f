package nodes

import (
	"context"
	"fmt"

	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/pkg/schema"
)

// IfNode evaluates a boolean expression against the node's input through a
// pluggable evaluator and emits ConditionResult. The dispatcher follows only
// edges whose sourceHandle matches "true" or "false".
type IfNode struct {
	base
	evaluator expressions.Engine
}

// NewIfNode builds the conditional constructor with the injected evaluator.
func NewIfNode(evaluator expressions.Engine) Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &IfNode{base: newBase(spec), evaluator: evaluator}, nil
	}
}

func (n *IfNode) Type() string { return TypeIf }

func (n *IfNode) Validate() error {
	if stringParam(n.params, "condition", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "if: missing required parameter 'condition'").
			WithNode(n.id)
	}
	return nil
}

func (n *IfNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	condition := stringParam(n.params, "condition", "")
	if condition == "" {
		return failure(n, "if: missing required parameter 'condition'"), nil
	}

	out, err := n.evaluator.Evaluate(ctx, condition, map[string]any{
		"input":  input,
		"params": n.params,
	})
	if err != nil {
		// Malformed expressions surface as node errors, not crashes.
		return failure(n, fmt.Sprintf("if: %v", err)), nil
	}

	verdict := truthy(out)
	result := success(n, input)
	result.ConditionResult = verdict
	if verdict {
		result.OutputBranch = schema.BranchTrue
	} else {
		result.OutputBranch = schema.BranchFalse
	}
	return result, nil
}

// truthy reduces an evaluator output to a branch verdict. Evaluators return
// typed values; anything non-zero and non-empty counts as true.
func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	case string:
		return val != "" && val != "false" && val != "0"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// SwitchNode matches input[field] against its configured cases and emits the
// matching branch label, falling through to "default" when nothing matches.
// Parameters: field (string), cases (list of {value, branch}).
type SwitchNode struct {
	base
}

// NewSwitchNode builds the switch constructor.
func NewSwitchNode() Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &SwitchNode{base: newBase(spec)}, nil
	}
}

func (n *SwitchNode) Type() string { return TypeSwitch }

func (n *SwitchNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	field := stringParam(n.params, "field", "")
	value := input[field]

	branch := schema.BranchDefault
	for _, rawCase := range sliceParam(n.params, "cases") {
		c, ok := rawCase.(map[string]any)
		if !ok {
			continue
		}
		if valuesEqual(c["value"], value) {
			branch = stringParam(c, "branch", schema.BranchDefault)
			break
		}
	}

	result := success(n, input)
	result.OutputBranch = branch
	return result, nil
}

// valuesEqual compares a case value against an input value. JSON decoding
// turns all numbers into float64, so numeric comparison normalizes first.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
