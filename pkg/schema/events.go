package schema

// Event type constants for the execution event log.
const (
	EventExecutionStarted  = "execution_started"
	EventExecutionFinished = "execution_finished"
	EventExecutionFailed   = "execution_failed"
	EventExecutionCanceled = "execution_canceled"

	EventNodeScheduled = "node_scheduled"
	EventNodeStarted   = "node_started"
	EventNodeCompleted = "node_completed"
	EventNodeFailed    = "node_failed"
	EventNodeRetrying  = "node_retrying"

	EventScheduleFired   = "schedule_fired"
	EventWebhookReceived = "webhook_received"
)

// ExecutionStatus represents the lifecycle state of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending  ExecutionStatus = "pending"
	ExecutionStatusRunning  ExecutionStatus = "running"
	ExecutionStatusSuccess  ExecutionStatus = "success"
	ExecutionStatusError    ExecutionStatus = "error"
	ExecutionStatusCanceled ExecutionStatus = "canceled"
)

// Terminal reports whether the status is final.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusError || s == ExecutionStatusCanceled
}

// NodeRunStatus represents the lifecycle state of a single node
// execution unit within a run.
type NodeRunStatus string

const (
	NodeRunScheduled NodeRunStatus = "scheduled"
	NodeRunRunning   NodeRunStatus = "running"
	NodeRunRetrying  NodeRunStatus = "retrying"
	NodeRunSuccess   NodeRunStatus = "success"
	NodeRunError     NodeRunStatus = "error"
)

// Terminal reports whether the node run status is final.
func (s NodeRunStatus) Terminal() bool {
	return s == NodeRunSuccess || s == NodeRunError
}

// RunMode records how a workflow run was initiated.
type RunMode string

const (
	RunModeManual    RunMode = "manual"
	RunModeWebhook   RunMode = "webhook"
	RunModeScheduled RunMode = "scheduled"
)
