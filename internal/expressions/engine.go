package expressions

import "context"

// Engine evaluates expressions against node input data.
// Three implementations: Expr (conditions), CEL (conditions, alternative),
// GoJQ (data transforms).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
