package trigger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

// Service is the front door for starting runs: manual invocations, webhook
// deliveries, and schedule management. The dispatcher decides how a run
// executes; the service only decides whether it starts.
type Service struct {
	store     store.Store
	runner    WorkflowRunner
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewService wires a trigger service.
func NewService(st store.Store, runner WorkflowRunner, scheduler *Scheduler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, runner: runner, scheduler: scheduler, logger: logger}
}

// RunManual starts a workflow on explicit request.
func (s *Service) RunManual(ctx context.Context, workflowID string, input map[string]any) (*store.Execution, error) {
	return s.runner.Run(ctx, workflowID, input, schema.RunModeManual)
}

// FireWebhook resolves a webhook token and runs its workflow with the
// delivered payload as input. Unknown and disabled tokens are both
// NOT_FOUND: a caller probing tokens learns nothing from the difference.
func (s *Service) FireWebhook(ctx context.Context, token string, payload map[string]any) (*store.Execution, error) {
	hook, err := s.store.GetWebhookByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !hook.Enabled {
		return nil, schema.NewError(schema.ErrCodeNotFound, "webhook not found")
	}

	exec, err := s.runner.Run(ctx, hook.WorkflowID, payload, schema.RunModeWebhook)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(map[string]any{"webhook_id": hook.ID})
	_ = s.store.AppendEvent(ctx, &store.Event{
		ExecutionID: exec.ID,
		Type:        schema.EventWebhookReceived,
		Payload:     raw,
	})
	s.logger.Info("webhook fired",
		slog.String("webhook_id", hook.ID),
		slog.String("workflow_id", hook.WorkflowID),
		slog.String("execution_id", exec.ID),
	)
	return exec, nil
}

// RegisterWebhook mints an opaque token bound to a workflow.
func (s *Service) RegisterWebhook(ctx context.Context, workflowID string) (*store.Webhook, error) {
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	hook := &store.Webhook{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Token:      uuid.New().String(),
		Enabled:    true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateWebhook(ctx, hook); err != nil {
		return nil, err
	}
	return hook, nil
}

// RegisterSchedule validates the cron expression, computes the first fire
// time, and persists the schedule.
func (s *Service) RegisterSchedule(ctx context.Context, workflowID, cronExpr string, input map[string]any) (*store.Schedule, error) {
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	next, err := s.scheduler.NextRun(cronExpr, time.Now().UTC())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid cron expression: %s", err.Error()).WithCause(err)
	}

	var raw json.RawMessage
	if input != nil {
		raw, err = json.Marshal(input)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "marshal schedule input: %s", err.Error()).WithCause(err)
		}
	}

	sched := &store.Schedule{
		ID:             uuid.New().String(),
		WorkflowID:     workflowID,
		CronExpression: cronExpr,
		Input:          raw,
		Enabled:        true,
		NextRunAt:      &next,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateSchedule(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}
