package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/pkg/schema"
)

func celData() map[string]any {
	return map[string]any{
		"input": map[string]any{
			"amount": 250.0,
			"status": "paid",
		},
		"params": map[string]any{
			"threshold": 100.0,
		},
		"workflow": map[string]any{
			"execution_id": "exec-1",
		},
	}
}

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	return e
}

func TestCELEngineName(t *testing.T) {
	assert.Equal(t, "cel", newCEL(t).Name())
}

func TestCELConditions(t *testing.T) {
	e := newCEL(t)

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"comparison against params", "double(input.amount) > double(params.threshold)", true},
		{"string equality", `input.status == "paid"`, true},
		{"logical and", `input.status == "paid" && double(input.amount) > 0.0`, true},
		{"conditional", `double(input.amount) > 1000.0 ? "review" : "auto"`, "auto"},
		{"membership", `input.status in ["paid", "refunded"]`, true},
		{"workflow metadata", `workflow.execution_id == "exec-1"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, celData())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCELMissingKeysDefaultToEmptyMaps(t *testing.T) {
	e := newCEL(t)

	// Only input is provided: params and workflow become empty maps, so
	// membership checks work instead of erroring on nil.
	out, err := e.Evaluate(context.Background(), `"threshold" in params`, map[string]any{
		"input": map[string]any{"amount": 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestCELEmptyExpression(t *testing.T) {
	e := newCEL(t)

	_, err := e.Evaluate(context.Background(), "", celData())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
}

func TestCELCompileError(t *testing.T) {
	e := newCEL(t)

	_, err := e.Evaluate(context.Background(), "input.amount >", celData())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
	assert.Equal(t, "input.amount >", engErr.Details["expression"])
}

func TestCELUnknownVariableIsCompileError(t *testing.T) {
	e := newCEL(t)

	// Only input, params, and workflow are declared in the environment.
	_, err := e.Evaluate(context.Background(), "secrets.key", celData())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
}

func TestCELRuntimeError(t *testing.T) {
	e := newCEL(t)

	// Accessing a missing key on a map errors at evaluation time.
	_, err := e.Evaluate(context.Background(), `input.missing == "x"`, celData())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeNodeExecution, engErr.Code)
}

func TestCELProgramCaching(t *testing.T) {
	e := newCEL(t)

	for i := 0; i < 3; i++ {
		_, err := e.Evaluate(context.Background(), `input.status == "paid"`, celData())
		require.NoError(t, err)
	}

	e.mu.RLock()
	assert.Len(t, e.cache, 1)
	e.mu.RUnlock()
}
