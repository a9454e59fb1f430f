package validation

import (
	"fmt"

	"github.com/nvallejo/weft/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express:
// duplicate node IDs, connection endpoint references, per-type parameter
// schemas, and (when a lookup is provided) node type registration.
// Unregistered types are warnings, not errors: the dispatcher records them
// as node-level failures at run time, and a definition may be saved before
// its node types are installed.
func validateSemantic(def *schema.WorkflowDefinition, lookup NodeTypeLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	nodeIDs := make(map[string]bool, len(def.Nodes))
	for i, node := range def.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)

		if nodeIDs[node.ID] {
			result.AddError(path+".id", schema.ErrCodeValidation,
				fmt.Sprintf("duplicate node id %q", node.ID))
		}
		nodeIDs[node.ID] = true

		if lookup != nil && !lookup.Has(node.Type) {
			result.AddWarning(path+".type", schema.ErrCodeUnknownNodeType,
				fmt.Sprintf("node type %q is not registered", node.Type))
		}

		if err := ValidateNodeParameters(node.Type, node.Parameters); err != nil {
			result.AddError(path+".parameters", schema.ErrCodeValidation, err.Error())
		}
	}

	for i, conn := range def.Connections {
		path := fmt.Sprintf("connections[%d]", i)

		if !nodeIDs[conn.Source] {
			result.AddError(path+".source", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", conn.Source))
		}
		if !nodeIDs[conn.Target] {
			result.AddError(path+".target", schema.ErrCodeValidation,
				fmt.Sprintf("references non-existent node %q", conn.Target))
		}
	}

	return result
}
