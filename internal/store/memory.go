package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. It backs tests and lightweight
// deployments that don't need persistence across restarts.
type MemoryStore struct {
	mu          sync.RWMutex
	workflows   map[string]*Workflow
	executions  map[string]*Execution
	nodeRuns    map[string]map[string]*NodeRun // executionID -> nodeID -> run
	events      map[string][]*Event            // executionID -> ordered events
	credentials map[string]*Credential
	schedules   map[string]*Schedule
	webhooks    map[string]*Webhook
	nextEventID int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workflows:   make(map[string]*Workflow),
		executions:  make(map[string]*Execution),
		nodeRuns:    make(map[string]map[string]*NodeRun),
		events:      make(map[string][]*Event),
		credentials: make(map[string]*Credential),
		schedules:   make(map[string]*Schedule),
		webhooks:    make(map[string]*Webhook),
	}
}

// --- Workflows ---

func (s *MemoryStore) CreateWorkflow(_ context.Context, wf *Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *wf
	cp.CreatedAt = timeOrNow(wf.CreatedAt)
	cp.UpdatedAt = timeOrNow(wf.UpdatedAt)
	s.workflows[wf.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWorkflow(_ context.Context, id string) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wf, ok := s.workflows[id]
	if !ok {
		return nil, storeNotFound("workflow", id)
	}
	cp := *wf
	return &cp, nil
}

func (s *MemoryStore) UpdateWorkflow(_ context.Context, id string, update WorkflowUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wf, ok := s.workflows[id]
	if !ok {
		return storeNotFound("workflow", id)
	}
	if update.Name != nil {
		wf.Name = *update.Name
	}
	if update.Definition != nil {
		wf.Definition = *update.Definition
	}
	if update.Active != nil {
		wf.Active = *update.Active
	}
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) ListWorkflows(_ context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Workflow
	for _, wf := range s.workflows {
		if filter.Active != nil && wf.Active != *filter.Active {
			continue
		}
		cp := *wf
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitOffset(out, filter.Limit, filter.Offset), nil
}

func (s *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[id]; !ok {
		return storeNotFound("workflow", id)
	}
	delete(s.workflows, id)
	return nil
}

// --- Executions ---

func (s *MemoryStore) CreateExecution(_ context.Context, ex *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ex
	cp.CreatedAt = timeOrNow(ex.CreatedAt)
	s.executions[ex.ID] = &cp
	return nil
}

func (s *MemoryStore) GetExecution(_ context.Context, id string) (*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ex, ok := s.executions[id]
	if !ok {
		return nil, storeNotFound("execution", id)
	}
	cp := *ex
	return &cp, nil
}

func (s *MemoryStore) UpdateExecution(_ context.Context, id string, update ExecutionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex, ok := s.executions[id]
	if !ok {
		return storeNotFound("execution", id)
	}
	if update.Status != nil {
		ex.Status = *update.Status
	}
	if update.Stats != nil {
		ex.Stats = *update.Stats
	}
	if update.Error != nil {
		ex.Error = *update.Error
	}
	if update.StartedAt != nil {
		ex.StartedAt = update.StartedAt
	}
	if update.FinishedAt != nil {
		ex.FinishedAt = update.FinishedAt
	}
	return nil
}

func (s *MemoryStore) ListExecutions(_ context.Context, filter ExecutionFilter) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Execution
	for _, ex := range s.executions {
		if filter.WorkflowID != "" && ex.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != nil && ex.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && ex.CreatedAt.Before(*filter.Since) {
			continue
		}
		cp := *ex
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limitOffset(out, filter.Limit, filter.Offset), nil
}

// --- Node runs ---

func (s *MemoryStore) UpsertNodeRun(_ context.Context, run *NodeRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byNode, ok := s.nodeRuns[run.ExecutionID]
	if !ok {
		byNode = make(map[string]*NodeRun)
		s.nodeRuns[run.ExecutionID] = byNode
	}
	cp := *run
	cp.UpdatedAt = time.Now().UTC()
	byNode[run.NodeID] = &cp
	return nil
}

func (s *MemoryStore) GetNodeRun(_ context.Context, executionID, nodeID string) (*NodeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	nr, ok := s.nodeRuns[executionID][nodeID]
	if !ok {
		return nil, storeNotFound("node_run", executionID+"/"+nodeID)
	}
	cp := *nr
	return &cp, nil
}

func (s *MemoryStore) ListNodeRuns(_ context.Context, executionID string) ([]*NodeRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*NodeRun
	for _, nr := range s.nodeRuns[executionID] {
		cp := *nr
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}

// --- Events ---

func (s *MemoryStore) AppendEvent(_ context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	cp := *event
	cp.ID = s.nextEventID
	cp.Sequence = int64(len(s.events[event.ExecutionID])) + 1
	if cp.Timestamp.IsZero() {
		cp.Timestamp = time.Now().UTC()
	}
	s.events[event.ExecutionID] = append(s.events[event.ExecutionID], &cp)
	event.Sequence = cp.Sequence
	return nil
}

func (s *MemoryStore) GetEvents(_ context.Context, executionID string, since int64) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Event
	for _, e := range s.events[executionID] {
		if e.Sequence > since {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- Credentials ---

func (s *MemoryStore) CreateCredential(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *cred
	cp.CreatedAt = timeOrNow(cred.CreatedAt)
	cp.UpdatedAt = timeOrNow(cred.UpdatedAt)
	s.credentials[cred.ID] = &cp
	return nil
}

func (s *MemoryStore) GetCredential(_ context.Context, id string) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credentials[id]
	if !ok {
		return nil, storeNotFound("credential", id)
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) DeleteCredential(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[id]; !ok {
		return storeNotFound("credential", id)
	}
	delete(s.credentials, id)
	return nil
}

func (s *MemoryStore) ListCredentials(_ context.Context, ownerUser string) ([]*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Credential
	for _, c := range s.credentials {
		if c.OwnerUser != ownerUser {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// --- Schedules ---

func (s *MemoryStore) CreateSchedule(_ context.Context, sched *Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sched
	cp.CreatedAt = timeOrNow(sched.CreatedAt)
	s.schedules[sched.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSchedule(_ context.Context, id string) (*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, storeNotFound("schedule", id)
	}
	cp := *sc
	return &cp, nil
}

func (s *MemoryStore) UpdateSchedule(_ context.Context, id string, update ScheduleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return storeNotFound("schedule", id)
	}
	if update.Enabled != nil {
		sc.Enabled = *update.Enabled
	}
	if update.LastRunAt != nil {
		sc.LastRunAt = update.LastRunAt
	}
	if update.NextRunAt != nil {
		sc.NextRunAt = update.NextRunAt
	}
	return nil
}

func (s *MemoryStore) ListSchedules(_ context.Context, enabledOnly bool) ([]*Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Schedule
	for _, sc := range s.schedules {
		if enabledOnly && !sc.Enabled {
			continue
		}
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteSchedule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return storeNotFound("schedule", id)
	}
	delete(s.schedules, id)
	return nil
}

// --- Webhooks ---

func (s *MemoryStore) CreateWebhook(_ context.Context, hook *Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *hook
	cp.CreatedAt = timeOrNow(hook.CreatedAt)
	s.webhooks[hook.ID] = &cp
	return nil
}

func (s *MemoryStore) GetWebhookByToken(_ context.Context, token string) (*Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.webhooks {
		if h.Token == token {
			cp := *h
			return &cp, nil
		}
	}
	return nil, storeNotFound("webhook", token)
}

func (s *MemoryStore) DeleteWebhook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhooks[id]; !ok {
		return storeNotFound("webhook", id)
	}
	delete(s.webhooks, id)
	return nil
}

// --- Maintenance ---

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Vacuum(context.Context) error  { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func limitOffset[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
