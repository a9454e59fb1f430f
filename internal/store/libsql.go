package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/nvallejo/weft/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=-20000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Workflows ---

func (s *LibSQLStore) CreateWorkflow(ctx context.Context, wf *Workflow) error {
	def, err := json.Marshal(wf.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workflows (id, name, definition, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.Name, string(def), boolToInt(wf.Active),
		timeOrNow(wf.CreatedAt), timeOrNow(wf.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	wf := &Workflow{}
	var defJSON string
	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, definition, active, created_at, updated_at FROM workflows WHERE id = ?`, id,
	).Scan(&wf.ID, &wf.Name, &defJSON, &active, &wf.CreatedAt, &wf.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("workflow", id)
	}
	if err != nil {
		return nil, err
	}
	wf.Active = active != 0
	if err := json.Unmarshal([]byte(defJSON), &wf.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal definition: %w", err)
	}
	return wf, nil
}

func (s *LibSQLStore) UpdateWorkflow(ctx context.Context, id string, update WorkflowUpdate) error {
	var sets []string
	var args []any

	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Definition != nil {
		def, err := json.Marshal(update.Definition)
		if err != nil {
			return fmt.Errorf("marshal definition: %w", err)
		}
		sets = append(sets, "definition = ?")
		args = append(args, string(def))
	}
	if update.Active != nil {
		sets = append(sets, "active = ?")
		args = append(args, boolToInt(*update.Active))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE workflows SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	var where []string
	var args []any

	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, boolToInt(*filter.Active))
	}

	query := "SELECT id, name, definition, active, created_at, updated_at FROM workflows"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workflows []*Workflow
	for rows.Next() {
		wf := &Workflow{}
		var defJSON string
		var active int
		if err := rows.Scan(&wf.ID, &wf.Name, &defJSON, &active, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, err
		}
		wf.Active = active != 0
		if err := json.Unmarshal([]byte(defJSON), &wf.Definition); err != nil {
			return nil, fmt.Errorf("unmarshal definition: %w", err)
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *LibSQLStore) DeleteWorkflow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "workflow", id)
}

// --- Executions ---

func (s *LibSQLStore) CreateExecution(ctx context.Context, ex *Execution) error {
	input, err := marshalMapOrDefault(ex.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	stats, err := json.Marshal(ex.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions (id, workflow_id, status, mode, input, stats, error, created_at, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID, ex.WorkflowID, string(ex.Status), string(ex.Mode),
		string(input), string(stats), nullStr(ex.Error),
		timeOrNow(ex.CreatedAt), nullTime(ex.StartedAt), nullTime(ex.FinishedAt),
	)
	return err
}

func (s *LibSQLStore) GetExecution(ctx context.Context, id string) (*Execution, error) {
	ex := &Execution{}
	var (
		status, mode          string
		inputJSON, statsJSON  sql.NullString
		errMsg                sql.NullString
		startedAt, finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, status, mode, input, stats, error, created_at, started_at, finished_at
		 FROM executions WHERE id = ?`, id,
	).Scan(&ex.ID, &ex.WorkflowID, &status, &mode, &inputJSON, &statsJSON, &errMsg,
		&ex.CreatedAt, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("execution", id)
	}
	if err != nil {
		return nil, err
	}
	ex.Status = schema.ExecutionStatus(status)
	ex.Mode = schema.RunMode(mode)
	ex.Error = errMsg.String
	if inputJSON.Valid && inputJSON.String != "" {
		_ = json.Unmarshal([]byte(inputJSON.String), &ex.Input)
	}
	if statsJSON.Valid && statsJSON.String != "" {
		_ = json.Unmarshal([]byte(statsJSON.String), &ex.Stats)
	}
	if startedAt.Valid {
		ex.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		ex.FinishedAt = &finishedAt.Time
	}
	return ex, nil
}

func (s *LibSQLStore) UpdateExecution(ctx context.Context, id string, update ExecutionUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.Stats != nil {
		stats, err := json.Marshal(update.Stats)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		sets = append(sets, "stats = ?")
		args = append(args, string(stats))
	}
	if update.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *update.Error)
	}
	if update.StartedAt != nil {
		sets = append(sets, "started_at = ?")
		args = append(args, *update.StartedAt)
	}
	if update.FinishedAt != nil {
		sets = append(sets, "finished_at = ?")
		args = append(args, *update.FinishedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE executions SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "execution", id)
}

func (s *LibSQLStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*Execution, error) {
	var where []string
	var args []any

	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, workflow_id, status, mode, input, stats, error, created_at, started_at, finished_at FROM executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		ex := &Execution{}
		var (
			status, mode          string
			inputJSON, statsJSON  sql.NullString
			errMsg                sql.NullString
			startedAt, finishedAt sql.NullTime
		)
		if err := rows.Scan(&ex.ID, &ex.WorkflowID, &status, &mode, &inputJSON, &statsJSON, &errMsg,
			&ex.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		ex.Status = schema.ExecutionStatus(status)
		ex.Mode = schema.RunMode(mode)
		ex.Error = errMsg.String
		if inputJSON.Valid && inputJSON.String != "" {
			_ = json.Unmarshal([]byte(inputJSON.String), &ex.Input)
		}
		if statsJSON.Valid && statsJSON.String != "" {
			_ = json.Unmarshal([]byte(statsJSON.String), &ex.Stats)
		}
		if startedAt.Valid {
			ex.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			ex.FinishedAt = &finishedAt.Time
		}
		executions = append(executions, ex)
	}
	return executions, rows.Err()
}

// --- Node runs ---

func (s *LibSQLStore) UpsertNodeRun(ctx context.Context, run *NodeRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_runs (execution_id, node_id, status, output, error, attempt, started_at, finished_at, duration_ms, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(execution_id, node_id) DO UPDATE SET
		   status=excluded.status, output=excluded.output, error=excluded.error,
		   attempt=excluded.attempt, started_at=excluded.started_at,
		   finished_at=excluded.finished_at, duration_ms=excluded.duration_ms,
		   updated_at=CURRENT_TIMESTAMP`,
		run.ExecutionID, run.NodeID, string(run.Status),
		nullRaw(run.Output), nullStr(run.Error), run.Attempt,
		nullTime(run.StartedAt), nullTime(run.FinishedAt), run.DurationMs,
	)
	return err
}

func (s *LibSQLStore) GetNodeRun(ctx context.Context, executionID, nodeID string) (*NodeRun, error) {
	nr := &NodeRun{}
	var status string
	var output, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT execution_id, node_id, status, output, error, attempt, started_at, finished_at, duration_ms, updated_at
		 FROM node_runs WHERE execution_id = ? AND node_id = ?`, executionID, nodeID,
	).Scan(&nr.ExecutionID, &nr.NodeID, &status, &output, &errMsg,
		&nr.Attempt, &startedAt, &finishedAt, &nr.DurationMs, &nr.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("node_run", executionID+"/"+nodeID)
	}
	if err != nil {
		return nil, err
	}
	nr.Status = schema.NodeRunStatus(status)
	nr.Output = rawOrNil(output)
	nr.Error = errMsg.String
	if startedAt.Valid {
		nr.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		nr.FinishedAt = &finishedAt.Time
	}
	return nr, nil
}

func (s *LibSQLStore) ListNodeRuns(ctx context.Context, executionID string) ([]*NodeRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT execution_id, node_id, status, output, error, attempt, started_at, finished_at, duration_ms, updated_at
		 FROM node_runs WHERE execution_id = ? ORDER BY node_id`, executionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*NodeRun
	for rows.Next() {
		nr := &NodeRun{}
		var status string
		var output, errMsg sql.NullString
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(&nr.ExecutionID, &nr.NodeID, &status, &output, &errMsg,
			&nr.Attempt, &startedAt, &finishedAt, &nr.DurationMs, &nr.UpdatedAt); err != nil {
			return nil, err
		}
		nr.Status = schema.NodeRunStatus(status)
		nr.Output = rawOrNil(output)
		nr.Error = errMsg.String
		if startedAt.Valid {
			nr.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			nr.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, nr)
	}
	return runs, rows.Err()
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE execution_id = ?`, event.ExecutionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (execution_id, node_id, event_type, payload, timestamp, sequence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ExecutionID, nullStr(event.NodeID), event.Type,
		nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, executionID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, execution_id, node_id, event_type, payload, timestamp, sequence
		 FROM events WHERE execution_id = ? AND sequence > ? ORDER BY sequence ASC`,
		executionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var nodeID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.ExecutionID, &nodeID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.NodeID = nodeID.String
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Credentials ---

func (s *LibSQLStore) CreateCredential(ctx context.Context, cred *Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, name, owner_user, type, ciphertext, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cred.ID, cred.Name, cred.OwnerUser, cred.Type, cred.Ciphertext,
		timeOrNow(cred.CreatedAt), timeOrNow(cred.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetCredential(ctx context.Context, id string) (*Credential, error) {
	c := &Credential{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_user, type, ciphertext, created_at, updated_at
		 FROM credentials WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.OwnerUser, &c.Type, &c.Ciphertext, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("credential", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *LibSQLStore) DeleteCredential(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "credential", id)
}

func (s *LibSQLStore) ListCredentials(ctx context.Context, ownerUser string) ([]*Credential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, owner_user, type, ciphertext, created_at, updated_at
		 FROM credentials WHERE owner_user = ? ORDER BY created_at DESC`, ownerUser,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		c := &Credential{}
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerUser, &c.Type, &c.Ciphertext, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}

// --- Schedules ---

func (s *LibSQLStore) CreateSchedule(ctx context.Context, sched *Schedule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules (id, workflow_id, cron_expression, input, enabled, last_run_at, next_run_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.WorkflowID, sched.CronExpression, nullRaw(sched.Input),
		boolToInt(sched.Enabled), nullTime(sched.LastRunAt), nullTime(sched.NextRunAt),
		timeOrNow(sched.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	sc := &Schedule{}
	var input sql.NullString
	var enabled int
	var lastRun, nextRun sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, cron_expression, input, enabled, last_run_at, next_run_at, created_at
		 FROM schedules WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.WorkflowID, &sc.CronExpression, &input, &enabled, &lastRun, &nextRun, &sc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("schedule", id)
	}
	if err != nil {
		return nil, err
	}
	sc.Input = rawOrNil(input)
	sc.Enabled = enabled != 0
	if lastRun.Valid {
		sc.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		sc.NextRunAt = &nextRun.Time
	}
	return sc, nil
}

func (s *LibSQLStore) UpdateSchedule(ctx context.Context, id string, update ScheduleUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE schedules SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "schedule", id)
}

func (s *LibSQLStore) ListSchedules(ctx context.Context, enabledOnly bool) ([]*Schedule, error) {
	query := `SELECT id, workflow_id, cron_expression, input, enabled, last_run_at, next_run_at, created_at FROM schedules`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		sc := &Schedule{}
		var input sql.NullString
		var enabled int
		var lastRun, nextRun sql.NullTime
		if err := rows.Scan(&sc.ID, &sc.WorkflowID, &sc.CronExpression, &input, &enabled, &lastRun, &nextRun, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Input = rawOrNil(input)
		sc.Enabled = enabled != 0
		if lastRun.Valid {
			sc.LastRunAt = &lastRun.Time
		}
		if nextRun.Valid {
			sc.NextRunAt = &nextRun.Time
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

func (s *LibSQLStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "schedule", id)
}

// --- Webhooks ---

func (s *LibSQLStore) CreateWebhook(ctx context.Context, hook *Webhook) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, workflow_id, token, enabled, created_at) VALUES (?, ?, ?, ?, ?)`,
		hook.ID, hook.WorkflowID, hook.Token, boolToInt(hook.Enabled), timeOrNow(hook.CreatedAt),
	)
	return err
}

func (s *LibSQLStore) GetWebhookByToken(ctx context.Context, token string) (*Webhook, error) {
	h := &Webhook{}
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, token, enabled, created_at FROM webhooks WHERE token = ?`, token,
	).Scan(&h.ID, &h.WorkflowID, &h.Token, &enabled, &h.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("webhook", token)
	}
	if err != nil {
		return nil, err
	}
	h.Enabled = enabled != 0
	return h, nil
}

func (s *LibSQLStore) DeleteWebhook(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "webhook", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
