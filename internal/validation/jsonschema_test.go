package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/pkg/schema"
)

func newJSONValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func validDefinition() *schema.WorkflowDefinition {
	return &schema.WorkflowDefinition{
		Nodes: []schema.NodeSpec{
			{ID: "start", Type: "manual-trigger"},
			{ID: "check", Type: "if", Parameters: map[string]any{"condition": "input.ok"}},
		},
		Connections: []schema.Edge{
			{Source: "start", Target: "check"},
		},
	}
}

func TestValidateDefinition_Valid(t *testing.T) {
	v := newJSONValidator(t)
	require.NoError(t, v.ValidateDefinition(validDefinition()))
}

func TestValidateDefinition_Nil(t *testing.T) {
	v := newJSONValidator(t)

	err := v.ValidateDefinition(nil)
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
}

func TestValidateDefinition_EmptyNodeID(t *testing.T) {
	v := newJSONValidator(t)

	def := validDefinition()
	def.Nodes[0].ID = ""

	err := v.ValidateDefinition(def)
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
	assert.NotEmpty(t, engErr.Details["violations"])
}

func TestValidateDefinition_MissingNodeType(t *testing.T) {
	v := newJSONValidator(t)

	def := validDefinition()
	def.Nodes[1].Type = ""

	require.Error(t, v.ValidateDefinition(def))
}

func TestValidateDefinition_EmptyConnectionEndpoint(t *testing.T) {
	v := newJSONValidator(t)

	def := validDefinition()
	def.Connections[0].Target = ""

	require.Error(t, v.ValidateDefinition(def))
}

func TestValidateDefinition_EmptyWorkflow(t *testing.T) {
	v := newJSONValidator(t)

	// A definition with no nodes is structurally fine; whether it runs is
	// the engine's business.
	require.NoError(t, v.ValidateDefinition(&schema.WorkflowDefinition{}))
}

func TestValidateInput_NoSchemaIsNoop(t *testing.T) {
	v := newJSONValidator(t)
	require.NoError(t, v.ValidateInput(map[string]any{"anything": true}, nil))
}

func TestValidateInput_Valid(t *testing.T) {
	v := newJSONValidator(t)

	inputSchema := []byte(`{
	  "type": "object",
	  "required": ["amount"],
	  "properties": { "amount": { "type": "number", "minimum": 0 } }
	}`)

	require.NoError(t, v.ValidateInput(map[string]any{"amount": 42.5}, inputSchema))
}

func TestValidateInput_Violation(t *testing.T) {
	v := newJSONValidator(t)

	inputSchema := []byte(`{
	  "type": "object",
	  "required": ["amount"],
	  "properties": { "amount": { "type": "number", "minimum": 0 } }
	}`)

	err := v.ValidateInput(map[string]any{"amount": -1}, inputSchema)
	require.Error(t, err)

	var engErr *schema.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
}

func TestValidateInput_SchemaCaching(t *testing.T) {
	v := newJSONValidator(t)

	inputSchema := []byte(`{"type": "object"}`)
	require.NoError(t, v.ValidateInput(map[string]any{}, inputSchema))
	require.NoError(t, v.ValidateInput(map[string]any{"again": 1}, inputSchema))

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1, "identical schemas compile once")
}

func TestValidateInput_InvalidSchema(t *testing.T) {
	v := newJSONValidator(t)

	err := v.ValidateInput(map[string]any{}, []byte(`{"type": 42}`))
	require.Error(t, err)
}
