package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nvallejo/weft/internal/graph"
	"github.com/nvallejo/weft/internal/logging"
	"github.com/nvallejo/weft/internal/monitor"
	"github.com/nvallejo/weft/internal/nodes"
	"github.com/nvallejo/weft/internal/store"
	"github.com/nvallejo/weft/pkg/schema"
)

const (
	// DefaultPoolSize is the number of concurrent node workers per run.
	DefaultPoolSize = 4

	// DefaultMaxUnitsPerRun bounds how many node executions a single run may
	// schedule before it is aborted. Cyclic workflows are legal; this cap is
	// what makes them terminate.
	DefaultMaxUnitsPerRun = 10_000
)

// Config tunes a Dispatcher. Zero values fall back to the defaults above.
type Config struct {
	PoolSize       int
	MaxUnitsPerRun int
	MaxAttempts    int
	Backoff        []time.Duration
}

func (c Config) withDefaults() Config {
	if c.PoolSize <= 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxUnitsPerRun <= 0 {
		c.MaxUnitsPerRun = DefaultMaxUnitsPerRun
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if len(c.Backoff) == 0 {
		c.Backoff = DefaultBackoff
	}
	return c
}

// Dispatcher drives workflow executions: it compiles a stored definition,
// seeds the trigger nodes, and schedules successor nodes as outputs arrive
// until no work remains. Node failures are recorded per node; they never
// halt sibling branches.
type Dispatcher struct {
	registry *nodes.Registry
	store    store.Store
	monitor  monitor.Monitor
	logger   *slog.Logger
	cfg      Config

	execFSM *ExecutionFSM
	nodeFSM *NodeRunFSM

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewDispatcher wires a dispatcher against an explicit registry and store.
// There is no package-level instance; callers own the wiring.
func NewDispatcher(registry *nodes.Registry, st store.Store, mon monitor.Monitor, logger *slog.Logger, cfg Config) *Dispatcher {
	if mon == nil {
		mon = monitor.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		store:    st,
		monitor:  mon,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		execFSM:  NewExecutionFSM(st),
		nodeFSM:  NewNodeRunFSM(st),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Run executes a workflow synchronously and returns its final execution
// record. A definition that fails to compile returns the compile error
// without creating any execution record. A workflow whose trigger set is
// empty completes immediately with success.
//
// The returned error is non-nil only when the run itself could not proceed
// (compile failure, store failure, unit cap exceeded). Individual node
// failures leave the run successful: they show up in the execution's
// nodesFailed stat and in the per-node run records.
func (d *Dispatcher) Run(ctx context.Context, workflowID string, input map[string]any, mode schema.RunMode) (*store.Execution, error) {
	wf, err := d.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	g, err := graph.Compile(&wf.Definition)
	if err != nil {
		return nil, err
	}

	exec := &store.Execution{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		Status:     schema.ExecutionStatusPending,
		Mode:       mode,
		Input:      input,
		CreatedAt:  time.Now().UTC(),
	}
	if err := d.store.CreateExecution(ctx, exec); err != nil {
		return nil, err
	}

	ctx = logging.WithIDs(ctx, wf.ID, exec.ID, "")
	log := logging.LogWith(ctx, d.logger)

	if len(g.Triggers) == 0 {
		now := time.Now().UTC()
		if err := d.execFSM.Transition(ctx, exec.ID, schema.ExecutionStatusPending, schema.ExecutionStatusSuccess); err != nil {
			return nil, err
		}
		status := schema.ExecutionStatusSuccess
		if err := d.store.UpdateExecution(ctx, exec.ID, store.ExecutionUpdate{
			Status:     &status,
			StartedAt:  &now,
			FinishedAt: &now,
		}); err != nil {
			return nil, err
		}
		log.Info("execution finished with no runnable nodes")
		return d.store.GetExecution(ctx, exec.ID)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.registerCancel(exec.ID, cancel)
	defer d.unregisterCancel(exec.ID)

	started := time.Now().UTC()
	if err := d.execFSM.Transition(ctx, exec.ID, schema.ExecutionStatusPending, schema.ExecutionStatusRunning); err != nil {
		return nil, err
	}
	running := schema.ExecutionStatusRunning
	if err := d.store.UpdateExecution(ctx, exec.ID, store.ExecutionUpdate{
		Status:    &running,
		StartedAt: &started,
	}); err != nil {
		return nil, err
	}

	r := &run{
		d:      d,
		graph:  g,
		execID: exec.ID,
		queue:  newTaskQueue(),
		cancel: cancel,
	}

	// Seed every trigger before the consumers start so the pending counter
	// cannot hit zero prematurely.
	for _, id := range g.Triggers {
		r.schedule(ctx, Task{ExecutionID: exec.ID, NodeID: id, Input: input, Attempt: 1})
	}

	go func() {
		<-runCtx.Done()
		r.queue.Close()
	}()

	pool := NewWorkerPool(d.cfg.PoolSize)
	for i := 0; i < d.cfg.PoolSize; i++ {
		if err := pool.Submit(runCtx, func(ctx context.Context) error {
			r.consume(ctx)
			return nil
		}); err != nil {
			break
		}
	}
	pool.Wait()
	pool.Shutdown()

	return d.finalize(ctx, runCtx, r, started, log)
}

// finalize records the terminal status and aggregate stats of a finished run.
func (d *Dispatcher) finalize(ctx, runCtx context.Context, r *run, started time.Time, log *slog.Logger) (*store.Execution, error) {
	finished := time.Now().UTC()
	stats := store.ExecutionStats{
		NodesExecuted:             int(atomic.LoadInt64(&r.executed)),
		NodesFailed:               int(atomic.LoadInt64(&r.failed)),
		TotalExecutionTimeSeconds: finished.Sub(started).Seconds(),
	}

	var (
		status schema.ExecutionStatus
		errMsg string
		runErr error
	)
	switch {
	case r.capped.Load():
		status = schema.ExecutionStatusError
		runErr = schema.NewErrorf(schema.ErrCodeTerminal,
			"execution exceeded the per-run unit cap of %d scheduled nodes", d.cfg.MaxUnitsPerRun)
		errMsg = runErr.Error()
	case runCtx.Err() != nil:
		status = schema.ExecutionStatusCanceled
	default:
		// Node failures do not fail the run: a failed node only stops
		// propagation along its own edges, and callers inspect node runs
		// for per-node outcomes. The run itself reached its fixpoint.
		status = schema.ExecutionStatusSuccess
	}

	if err := d.execFSM.Transition(ctx, r.execID, schema.ExecutionStatusRunning, status); err != nil {
		return nil, err
	}
	upd := store.ExecutionUpdate{
		Status:     &status,
		Stats:      &stats,
		FinishedAt: &finished,
	}
	if errMsg != "" {
		upd.Error = &errMsg
	}
	if err := d.store.UpdateExecution(ctx, r.execID, upd); err != nil {
		return nil, err
	}

	d.monitor.RecordMetric(ctx, "engine.execution.duration_seconds", monitor.MetricTimer, stats.TotalExecutionTimeSeconds, map[string]string{"status": string(status)})
	d.monitor.RecordMetric(ctx, "engine.nodes.executed", monitor.MetricCounter, float64(stats.NodesExecuted), nil)
	if stats.NodesFailed > 0 {
		d.monitor.RecordMetric(ctx, "engine.nodes.failed", monitor.MetricCounter, float64(stats.NodesFailed), nil)
	}
	log.Info("execution finished",
		"status", status,
		"nodes_executed", stats.NodesExecuted,
		"nodes_failed", stats.NodesFailed,
	)

	exec, err := d.store.GetExecution(ctx, r.execID)
	if err != nil {
		return nil, err
	}
	return exec, runErr
}

// Cancel requests cooperative cancellation of a running execution. Nodes in
// flight finish or abort on their own context; nothing new is scheduled.
func (d *Dispatcher) Cancel(executionID string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[executionID]
	d.mu.Unlock()
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "no running execution with ID %s", executionID)
	}
	cancel()
	return nil
}

// Status returns the execution record plus the per-node outcomes recorded
// so far.
func (d *Dispatcher) Status(ctx context.Context, executionID string) (*store.Execution, []*store.NodeRun, error) {
	exec, err := d.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	runs, err := d.store.ListNodeRuns(ctx, executionID)
	if err != nil {
		return nil, nil, err
	}
	return exec, runs, nil
}

func (d *Dispatcher) registerCancel(executionID string, cancel context.CancelFunc) {
	d.mu.Lock()
	d.cancels[executionID] = cancel
	d.mu.Unlock()
}

func (d *Dispatcher) unregisterCancel(executionID string) {
	d.mu.Lock()
	delete(d.cancels, executionID)
	d.mu.Unlock()
}

// run is the per-execution state shared by the consumer workers.
type run struct {
	d      *Dispatcher
	graph  *graph.ExecutionGraph
	execID string
	queue  *taskQueue
	cancel context.CancelFunc

	pending  int64 // scheduled but not yet finished tasks
	units    int64 // total tasks ever scheduled, checked against the cap
	executed int64
	failed   int64
	capped   atomic.Bool
}

// schedule enqueues one task, counting it against the unit cap. Hitting the
// cap aborts the whole run: the context is canceled so in-flight nodes stop
// and queued tasks are drained without executing.
func (r *run) schedule(ctx context.Context, t Task) {
	if r.capped.Load() || ctx.Err() != nil {
		return
	}
	if atomic.AddInt64(&r.units, 1) > int64(r.d.cfg.MaxUnitsPerRun) {
		if r.capped.CompareAndSwap(false, true) {
			r.cancel()
			r.queue.Close()
		}
		return
	}

	atomic.AddInt64(&r.pending, 1)
	if t.Attempt == 1 {
		now := time.Now().UTC()
		_ = r.d.store.UpsertNodeRun(ctx, &store.NodeRun{
			ExecutionID: r.execID,
			NodeID:      t.NodeID,
			Status:      schema.NodeRunScheduled,
			Attempt:     t.Attempt,
			UpdatedAt:   now,
		})
		_ = r.d.store.AppendEvent(ctx, &store.Event{
			ExecutionID: r.execID,
			NodeID:      t.NodeID,
			Type:        schema.EventNodeScheduled,
		})
	}
	r.queue.Push(t)
}

// finishTask retires one task. The last task standing closes the queue,
// which is what ends the run: no pending work means no future work.
func (r *run) finishTask() {
	if atomic.AddInt64(&r.pending, -1) == 0 {
		r.queue.Close()
	}
}

// consume is one worker loop. It drains the queue until the queue closes,
// skipping (but still retiring) tasks once the run is canceled or capped.
func (r *run) consume(ctx context.Context) {
	for {
		t, ok := r.queue.Pop()
		if !ok {
			return
		}
		if ctx.Err() != nil || r.capped.Load() {
			r.finishTask()
			continue
		}
		r.process(ctx, t)
		r.finishTask()
	}
}

// process runs a single task end to end: instantiate the node, execute it,
// record the outcome, and fan out to successors on success.
func (r *run) process(ctx context.Context, t Task) {
	ctx = logging.WithNodeID(ctx, t.NodeID)

	spec := r.graph.Node(t.NodeID)
	node, err := r.d.registry.Create(spec)
	if err != nil {
		r.recordFailure(ctx, t, nil, err.Error(), schema.NodeRunScheduled)
		return
	}
	if err := node.Validate(); err != nil {
		r.recordFailure(ctx, t, nil, err.Error(), schema.NodeRunScheduled)
		return
	}

	from := schema.NodeRunScheduled
	if t.Attempt > 1 {
		from = schema.NodeRunRetrying
	}
	if err := r.d.nodeFSM.Transition(ctx, r.execID, t.NodeID, from, schema.NodeRunRunning); err != nil {
		r.recordFailure(ctx, t, nil, err.Error(), from)
		return
	}

	started := time.Now().UTC()
	_ = r.d.store.UpsertNodeRun(ctx, &store.NodeRun{
		ExecutionID: r.execID,
		NodeID:      t.NodeID,
		Status:      schema.NodeRunRunning,
		Attempt:     t.Attempt,
		StartedAt:   &started,
		UpdatedAt:   started,
	})

	result, execErr := node.Execute(ctx, t.Input)
	if execErr != nil {
		if IsTransient(execErr) && t.Attempt < r.d.cfg.MaxAttempts {
			r.retry(ctx, t, started, execErr)
			return
		}
		r.recordFailure(ctx, t, &started, execErr.Error(), schema.NodeRunRunning)
		return
	}
	if result == nil {
		r.recordFailure(ctx, t, &started, "node returned no result", schema.NodeRunRunning)
		return
	}
	if result.Status == nodes.StatusError {
		r.recordFailure(ctx, t, &started, result.Error, schema.NodeRunRunning)
		return
	}

	finished := time.Now().UTC()
	output, _ := json.Marshal(result)
	_ = r.d.store.UpsertNodeRun(ctx, &store.NodeRun{
		ExecutionID: r.execID,
		NodeID:      t.NodeID,
		Status:      schema.NodeRunSuccess,
		Output:      output,
		Attempt:     t.Attempt,
		StartedAt:   &started,
		FinishedAt:  &finished,
		DurationMs:  finished.Sub(started).Milliseconds(),
		UpdatedAt:   finished,
	})
	_ = r.d.nodeFSM.Transition(ctx, r.execID, t.NodeID, schema.NodeRunRunning, schema.NodeRunSuccess)
	atomic.AddInt64(&r.executed, 1)

	r.fanOut(ctx, t, result)
}

// retry records the retrying state, waits out the backoff in place, and
// reschedules the task with the next attempt number. The backoff wait is
// context-aware so cancellation cuts it short.
func (r *run) retry(ctx context.Context, t Task, started time.Time, cause error) {
	now := time.Now().UTC()
	_ = r.d.nodeFSM.Transition(ctx, r.execID, t.NodeID, schema.NodeRunRunning, schema.NodeRunRetrying)
	_ = r.d.store.UpsertNodeRun(ctx, &store.NodeRun{
		ExecutionID: r.execID,
		NodeID:      t.NodeID,
		Status:      schema.NodeRunRetrying,
		Error:       cause.Error(),
		Attempt:     t.Attempt,
		StartedAt:   &started,
		UpdatedAt:   now,
	})
	logging.LogWith(ctx, r.d.logger).Warn("node failed transiently, retrying",
		"attempt", t.Attempt,
		"error", cause.Error(),
	)

	delay := BackoffDelay(r.d.cfg.Backoff, t.Attempt)
	if err := WaitForBackoff(ctx, delay); err != nil {
		r.recordFailure(ctx, t, &started, "canceled while waiting to retry", schema.NodeRunRetrying)
		return
	}

	next := t
	next.Attempt++
	r.schedule(ctx, next)
}

// recordFailure writes the terminal error outcome for one node. Failures are
// contained: siblings keep running, only the failed node's successors are
// suppressed.
func (r *run) recordFailure(ctx context.Context, t Task, started *time.Time, message string, from schema.NodeRunStatus) {
	finished := time.Now().UTC()
	nr := &store.NodeRun{
		ExecutionID: r.execID,
		NodeID:      t.NodeID,
		Status:      schema.NodeRunError,
		Error:       message,
		Attempt:     t.Attempt,
		StartedAt:   started,
		FinishedAt:  &finished,
		UpdatedAt:   finished,
	}
	if started != nil {
		nr.DurationMs = finished.Sub(*started).Milliseconds()
	}
	_ = r.d.store.UpsertNodeRun(ctx, nr)
	_ = r.d.nodeFSM.Transition(ctx, r.execID, t.NodeID, from, schema.NodeRunError)
	atomic.AddInt64(&r.failed, 1)

	logging.LogWith(ctx, r.d.logger).Error("node failed",
		"attempt", t.Attempt,
		"error", message,
	)
	r.d.monitor.Log(ctx, slog.LevelWarn, "engine", "node failed", map[string]any{
		"execution_id": r.execID,
		"node_id":      t.NodeID,
		"error":        message,
	})
}

// fanOut schedules the successors selected by a successful result. Split
// results schedule one task per item on every outgoing connection; branched
// results follow only the connections whose handle matches.
func (r *run) fanOut(ctx context.Context, t Task, result *nodes.Result) {
	if result.IsSplit {
		for _, conn := range r.graph.AllSuccessors(t.NodeID) {
			for _, item := range result.Items {
				r.schedule(ctx, Task{
					ExecutionID: r.execID,
					NodeID:      conn.Target,
					Input:       splitItemInput(item),
					Attempt:     1,
				})
			}
		}
		return
	}

	for _, conn := range r.graph.Successors(t.NodeID, result.Branch()) {
		r.schedule(ctx, Task{
			ExecutionID: r.execID,
			NodeID:      conn.Target,
			Input:       result.Data,
			Attempt:     1,
		})
	}
}

// splitItemInput shapes one split element into a node input. Object elements
// pass through as-is; scalars and arrays are wrapped under "item" so the
// downstream node always receives a map.
func splitItemInput(item any) map[string]any {
	if m, ok := item.(map[string]any); ok {
		return m
	}
	return map[string]any{"item": item}
}
