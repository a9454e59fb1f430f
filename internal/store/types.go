package store

import (
	"encoding/json"
	"time"

	"github.com/nvallejo/weft/pkg/schema"
)

// Workflow is a persisted workflow document. The execution core treats
// its Definition as a read-only snapshot.
type Workflow struct {
	ID         string                    `json:"id"`
	Name       string                    `json:"name"`
	Definition schema.WorkflowDefinition `json:"definition"`
	Active     bool                      `json:"active"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// ExecutionStats aggregates the outcome counters of a finished run.
type ExecutionStats struct {
	NodesExecuted             int     `json:"nodes_executed"`
	NodesFailed               int     `json:"nodes_failed"`
	TotalExecutionTimeSeconds float64 `json:"total_execution_time_seconds"`
}

// Execution is the persisted record of one workflow run.
type Execution struct {
	ID         string                 `json:"id"`
	WorkflowID string                 `json:"workflow_id"`
	Status     schema.ExecutionStatus `json:"status"`
	Mode       schema.RunMode         `json:"mode"`
	Input      map[string]any         `json:"input,omitempty"`
	Stats      ExecutionStats         `json:"stats"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
}

// NodeRun is the recorded outcome of one node within an execution. Writes
// are last-write-wins per (execution_id, node_id): re-recording an outcome
// overwrites, it never duplicates.
type NodeRun struct {
	ExecutionID string               `json:"execution_id"`
	NodeID      string               `json:"node_id"`
	Status      schema.NodeRunStatus `json:"status"`
	Output      json.RawMessage      `json:"output,omitempty"`
	Error       string               `json:"error,omitempty"`
	Attempt     int                  `json:"attempt"`
	StartedAt   *time.Time           `json:"started_at,omitempty"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
	DurationMs  int64                `json:"duration_ms,omitempty"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Event is an immutable entry in the per-execution event log. Sequence is
// assigned at append time and is contiguous within an execution.
type Event struct {
	ID          int64           `json:"id"`
	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id,omitempty"`
	Type        string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Sequence    int64           `json:"sequence"`
}

// Credential is an encrypted credential row. Ciphertext is AES-256-GCM
// over the JSON payload; only the vault can decrypt it.
type Credential struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	OwnerUser  string    `json:"owner_user"`
	Type       string    `json:"type"`
	Ciphertext []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Schedule is a cron-fired workflow trigger.
type Schedule struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"`
	CronExpression string          `json:"cron_expression"`
	Input          json.RawMessage `json:"input,omitempty"`
	Enabled        bool            `json:"enabled"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time      `json:"next_run_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Webhook maps an opaque token to a workflow.
type Webhook struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	Token      string    `json:"token"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// --- Filter and update types ---

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Active *bool `json:"active,omitempty"`
	Limit  int   `json:"limit,omitempty"`
	Offset int   `json:"offset,omitempty"`
}

// WorkflowUpdate specifies mutable fields of a workflow.
type WorkflowUpdate struct {
	Name       *string                    `json:"name,omitempty"`
	Definition *schema.WorkflowDefinition `json:"definition,omitempty"`
	Active     *bool                      `json:"active,omitempty"`
}

// ExecutionFilter specifies criteria for listing executions.
type ExecutionFilter struct {
	WorkflowID string                  `json:"workflow_id,omitempty"`
	Status     *schema.ExecutionStatus `json:"status,omitempty"`
	Since      *time.Time              `json:"since,omitempty"`
	Limit      int                     `json:"limit,omitempty"`
	Offset     int                     `json:"offset,omitempty"`
}

// ExecutionUpdate specifies mutable fields of an execution record.
type ExecutionUpdate struct {
	Status     *schema.ExecutionStatus `json:"status,omitempty"`
	Stats      *ExecutionStats         `json:"stats,omitempty"`
	Error      *string                 `json:"error,omitempty"`
	StartedAt  *time.Time              `json:"started_at,omitempty"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
}

// ScheduleUpdate specifies mutable fields of a schedule.
type ScheduleUpdate struct {
	Enabled   *bool      `json:"enabled,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}
