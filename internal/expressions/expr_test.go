package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvallejo/weft/pkg/schema"
)

func orderInput() map[string]any {
	return map[string]any{
		"input": map[string]any{
			"amount":   250.0,
			"currency": "EUR",
			"tier":     "gold",
			"items": []any{
				map[string]any{"sku": "A-1", "qty": 2, "price": 50.0},
				map[string]any{"sku": "B-9", "qty": 1, "price": 150.0},
			},
		},
	}
}

func TestExprEngineName(t *testing.T) {
	assert.Equal(t, "expr", NewExprEngine().Name())
}

func TestExprConditions(t *testing.T) {
	e := NewExprEngine()

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"numeric comparison", "input.amount > 100", true},
		{"string equality", `input.currency == "EUR"`, true},
		{"negation", `input.tier != "gold"`, false},
		{"boolean combination", `input.amount > 100 && input.tier == "gold"`, true},
		{"membership", `input.tier in ["silver", "gold"]`, true},
		{"ternary", `input.amount > 100 ? "big" : "small"`, "big"},
		{"arithmetic", "input.amount * 2", 500.0},
		{"string concat", `input.tier + "-customer"`, "gold-customer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, orderInput())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExprArrayOperations(t *testing.T) {
	e := NewExprEngine()

	tests := []struct {
		name string
		expr string
		want any
	}{
		{"len", "len(input.items)", 2},
		{"any", "any(input.items, .price > 100)", true},
		{"all", "all(input.items, .qty > 0)", true},
		{"filter count", "len(filter(input.items, .qty > 1))", 1},
		{"map", `map(input.items, .sku)`, []any{"A-1", "B-9"}},
		{"sum", "sum(map(input.items, .price))", 200.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), tt.expr, orderInput())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestExprUndefinedVariablesAreNil(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "missing == nil", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestExprNilCoalescing(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), `input.discount ?? 0`, orderInput())
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}

func TestExprNilData(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "1 + 1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestExprEmptyExpression(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", orderInput())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
}

func TestExprCompileError(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "input.amount >", orderInput())
	require.Error(t, err)

	engErr, ok := err.(*schema.EngineError)
	require.True(t, ok)
	assert.Equal(t, schema.ErrCodeValidation, engErr.Code)
	assert.Equal(t, "input.amount >", engErr.Details["expression"])
}

func TestExprProgramCaching(t *testing.T) {
	e := NewExprEngine()

	for i := 0; i < 3; i++ {
		out, err := e.Evaluate(context.Background(), "input.amount > 100", orderInput())
		require.NoError(t, err)
		assert.Equal(t, true, out)
	}

	e.mu.RLock()
	assert.Len(t, e.cache, 1)
	e.mu.RUnlock()
}

func TestExprConcurrentEvaluation(t *testing.T) {
	e := NewExprEngine()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Evaluate(context.Background(), "input.amount > 100", orderInput())
			assert.NoError(t, err)
			assert.Equal(t, true, out)
		}()
	}
	wg.Wait()
}
