package nodes

import (
	"context"

	"github.com/nvallejo/weft/pkg/schema"
)

// Node type identifiers for the built-in library.
const (
	TypeTrigger         = "trigger"
	TypeManualTrigger   = "manual-trigger"
	TypeWebhookTrigger  = "webhook-trigger"
	TypeScheduleTrigger = "schedule-trigger"
	TypeHTTPRequest     = "http-request"
	TypeIf              = "if"
	TypeSwitch          = "switch"
	TypeMerge           = "merge"
	TypeSplit           = "split"
	TypeTransform       = "data-transform"
	TypeLog             = "log"
)

// TriggerNode is the entry point of a run. All trigger variants (manual,
// webhook, schedule) behave identically inside the graph: the run's initial
// payload passes through unchanged. What differs is who fires them, and
// that lives in internal/trigger.
type TriggerNode struct {
	base
	nodeType string
}

// NewTriggerNode builds a trigger constructor for the given type identifier.
func NewTriggerNode(nodeType string) Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &TriggerNode{base: newBase(spec), nodeType: nodeType}, nil
	}
}

func (n *TriggerNode) Type() string { return n.nodeType }

func (n *TriggerNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	return success(n, input), nil
}
