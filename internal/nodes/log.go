package nodes

import (
	"context"
	"log/slog"

	"github.com/nvallejo/weft/internal/expressions"
	"github.com/nvallejo/weft/internal/monitor"
	"github.com/nvallejo/weft/pkg/schema"
)

// LogNode emits a leveled log line through the observability collaborator
// and passes its input through unchanged. Parameters: level (debug|info|
// warn|error, default info), message ({{key}} tokens substituted from the
// input), channel (default "workflow").
type LogNode struct {
	base
	monitor monitor.Monitor
}

// NewLogNode builds the log constructor with the injected monitor.
func NewLogNode(m monitor.Monitor) Constructor {
	return func(spec *schema.NodeSpec) (Node, error) {
		return &LogNode{base: newBase(spec), monitor: m}, nil
	}
}

func (n *LogNode) Type() string { return TypeLog }

func (n *LogNode) Execute(ctx context.Context, input map[string]any) (*Result, error) {
	message := expressions.RenderTemplate(stringParam(n.params, "message", ""), input)
	channel := stringParam(n.params, "channel", "workflow")

	var level slog.Level
	switch stringParam(n.params, "level", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if n.monitor != nil {
		n.monitor.Log(ctx, level, channel, message, map[string]any{
			"node_id": n.id,
		})
	}

	return success(n, input), nil
}
