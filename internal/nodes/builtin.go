package nodes

import (
	"github.com/nvallejo/weft/internal/credentials"
	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/internal/monitor"
)

// Deps are the collaborators the built-in node library needs. Evaluator
// powers if-node conditions, JQ powers data-transform query mode, Monitor
// receives log-node output, Vault resolves http-request credentials.
type Deps struct {
	Evaluator expressions.Engine
	JQ        *expressions.GoJQEngine
	Monitor   monitor.Monitor
	Vault     credentials.Vault
	HTTP      HTTPConfig
}

// RegisterBuiltins registers the built-in node library in the given
// registry. "trigger" and "manual-trigger" are the same node under two
// names; webhook and schedule triggers are graph-level passthroughs whose
// firing semantics live in internal/trigger.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	if deps.Monitor == nil {
		deps.Monitor = monitor.Nop{}
	}

	ctors := map[string]Constructor{
		TypeTrigger:         NewTriggerNode(TypeTrigger),
		TypeManualTrigger:   NewTriggerNode(TypeManualTrigger),
		TypeWebhookTrigger:  NewTriggerNode(TypeWebhookTrigger),
		TypeScheduleTrigger: NewTriggerNode(TypeScheduleTrigger),
		TypeHTTPRequest:     NewHTTPRequestNode(deps.HTTP, deps.Vault),
		TypeIf:              NewIfNode(deps.Evaluator),
		TypeSwitch:          NewSwitchNode(),
		TypeMerge:           NewMergeNode(),
		TypeSplit:           NewSplitNode(),
		TypeTransform:       NewTransformNode(deps.JQ),
		TypeLog:             NewLogNode(deps.Monitor),
	}

	for nodeType, ctor := range ctors {
		if err := reg.Register(nodeType, ctor); err != nil {
			return err
		}
	}
	return nil
}
