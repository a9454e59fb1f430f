package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nvallejo/weft/pkg/schema"
)

// ExprEngine is the default condition evaluator. Conditional nodes hand it
// expressions like `input.amount > 100` with the node's input and
// parameters as the environment; undefined variables resolve to nil rather
// than failing, so a condition over an absent field is false, not an error.
//
// Compiled programs are cached per expression text. Workflows evaluate the
// same handful of conditions on every firing, so the cache is small and
// hits are the common case. Safe for concurrent use.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

func NewExprEngine() *ExprEngine {
	return &ExprEngine{cache: make(map[string]*vm.Program)}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate runs the expression with data as its environment. Compile
// problems come back as VALIDATION_ERROR, evaluation problems as
// NODE_EXECUTION_ERROR; both carry the expression text in the details.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	prg, err := e.program(expression, data)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, exprEnv(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

// program returns the cached compiled form of expression, compiling it on
// first use. The first caller's data shapes type inference; that is fine
// because AllowUndefinedVariables keeps later shapes legal.
func (e *ExprEngine) program(expression string, data map[string]any) (*vm.Program, error) {
	e.mu.RLock()
	prg, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(exprEnv(data)),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

// exprEnv guards against nil data: the vm needs a non-nil environment map.
func exprEnv(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

var _ Engine = (*ExprEngine)(nil)
