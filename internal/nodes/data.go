package nodes

import (
	"context"
	"fmt"

	"dario.cat/mergo"
	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/pkg/schema"
)

// MergeNode combines its statically configured data with the arriving input.
// The input wins on key collision. Default merging is shallow; the "deep"
// parameter switches to recursive map merging.
//
// Merge nodes have no barrier semantics: a merge node reached from two
// branches fires once per arriving input and merges only that input with its
// static configuration.
type MergeNode struct {
	base
}

// NewMergeNode builds the merge constructor.
func NewMergeNode() Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &MergeNode{base: newBase(spec)}, nil
	}
}

func (n *MergeNode) Type() string { return TypeMerge }

func (n *MergeNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	static := mapParam(n.params, "data")

	merged := make(map[string]any, len(static)+len(input))
	for k, v := range static {
		merged[k] = v
	}

	if boolParam(n.params, "deep", false) {
		if err := mergo.Merge(&merged, input, mergo.WithOverride); err != nil {
			return failure(n, fmt.Sprintf("merge: %v", err)), nil
		}
	} else {
		for k, v := range input {
			merged[k] = v
		}
	}

	return success(n, merged), nil
}

// SplitNode fans out: it requires input[field] to be an array and emits one
// item per element. The dispatcher schedules the successor once per item.
type SplitNode struct {
	base
}

// NewSplitNode builds the split constructor.
func NewSplitNode() Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &SplitNode{base: newBase(spec)}, nil
	}
}

func (n *SplitNode) Type() string { return TypeSplit }

func (n *SplitNode) Validate() error {
	if stringParam(n.params, "field", "") == "" {
		return schema.NewError(schema.ErrCodeValidation, "split: missing required parameter 'field'").
			WithNode(n.id)
	}
	return nil
}

func (n *SplitNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	field := stringParam(n.params, "field", "")
	if field == "" {
		return failure(n, "split: missing required parameter 'field'"), nil
	}

	raw, ok := input[field]
	if !ok {
		return failure(n, fmt.Sprintf("split: input field %q not found", field)), nil
	}
	items, ok := raw.([]any)
	if !ok {
		return failure(n, fmt.Sprintf("split: input field %q is not an array", field)), nil
	}

	result := success(n, input)
	result.IsSplit = true
	result.Items = items
	return result, nil
}

// TransformNode reshapes its input. Two modes:
//   - mapping mode (parameter "mapping": outputField → inputField): projects
//     selected input fields to renamed output fields; unmapped input fields
//     are dropped, mapped fields missing from the input are omitted.
//   - query mode (parameter "query": a jq program): runs the program over
//     the input; the result must be an object.
type TransformNode struct {
	base
	jq *expressions.GoJQEngine
}

// NewTransformNode builds the data-transform constructor.
func NewTransformNode(jq *expressions.GoJQEngine) Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &TransformNode{base: newBase(spec), jq: jq}, nil
	}
}

func (n *TransformNode) Type() string { return TypeTransform }

func (n *TransformNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	if query := stringParam(n.params, "query", ""); query != "" {
		return n.executeQuery(ctx, query, input)
	}

	mapping := mapParam(n.params, "mapping")
	out := make(map[string]any, len(mapping))
	for outputField, rawInputField := range mapping {
		inputField, ok := rawInputField.(string)
		if !ok {
			continue
		}
		if v, present := input[inputField]; present {
			out[outputField] = v
		}
	}

	return success(n, out), nil
}

func (n *TransformNode) executeQuery(ctx context.Context, query string, input map[string]any) (*Result, error) {
	if n.jq == nil {
		return failure(n, "data-transform: query mode not available"), nil
	}

	out, err := n.jq.Evaluate(ctx, query, input)
	if err != nil {
		return failure(n, fmt.Sprintf("data-transform: %v", err)), nil
	}

	obj, ok := out.(map[string]any)
	if !ok {
		return failure(n, fmt.Sprintf("data-transform: query produced %T, want object", out)), nil
	}

	return success(n, obj), nil
}
