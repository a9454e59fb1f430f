package validation

import "github.com/nvallejo/weft/pkg/schema"

// Validator checks workflow definitions for correctness before they are
// stored. Uses JSON Schema Draft 2020-12 for document validation.
type Validator interface {
	ValidateDefinition(def *schema.WorkflowDefinition) error
	ValidateInput(input map[string]any, inputSchema []byte) error
}

// NodeTypeLookup reports whether a node type is registered. Satisfied by
// the node registry; nil lookups skip type existence checks.
type NodeTypeLookup interface {
	Has(nodeType string) bool
}
