package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/agentmarket/coordinator/db"
)

type TaskStatus string

const (
	TaskStatusOpen        TaskStatus = "open"
	TaskStatusInProgress  TaskStatus = "in-progress"
	TaskStatusReview      TaskStatus = "review"
	TaskStatusSettlement  TaskStatus = "settlement"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusReversed    TaskStatus = "reversed"
)

type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// WorkResult is one worker's submission against a Task.
type WorkResult struct {
	WorkerID  string          `json:"workerId"`
	Result    json.RawMessage `json:"result"`
	Timestamp time.Time       `json:"timestamp"`
}

// WorkResults adapts a JSONB column to a typed slice.
type WorkResults []WorkResult

func (w WorkResults) Value() (driver.Value, error) {
	if w == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]WorkResult(w))
}

var _ driver.Valuer = (WorkResults)(nil)

func (w *WorkResults) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*w = nil
		return nil
	default:
		return fmt.Errorf("unsupported work_results scan type %T", src)
	}
	return json.Unmarshal(raw, (*[]WorkResult)(w))
}

var _ sql.Scanner = (*WorkResults)(nil)

// UUIDArray adapts a Postgres UUID[] column to a Go string slice.
type UUIDArray []string

func (a UUIDArray) Value() (driver.Value, error) {
	return pq.Array([]string(a)).Value()
}

var _ driver.Valuer = (UUIDArray)(nil)

func (a *UUIDArray) Scan(src interface{}) error {
	return pq.Array((*[]string)(a)).Scan(src)
}

var _ sql.Scanner = (*UUIDArray)(nil)

// Task is the central unit of work in the marketplace: a budgeted piece of
// work moving through the transitions defined in the statemachine package.
type Task struct {
	ID                   string       `json:"id" db:"id"`
	Title                string       `json:"title" db:"title"`
	Description          string       `json:"description" db:"description"`
	Budget               string       `json:"budget" db:"budget"`
	Status               TaskStatus   `json:"status" db:"status"`
	CreatorWallet        string       `json:"creatorWallet" db:"creator_wallet"`
	AssignedAgentIDs     UUIDArray    `json:"assignedAgentIds" db:"assigned_agent_ids"`
	WorkResults          WorkResults  `json:"workResults,omitempty" db:"work_results"`
	EscrowAmount         string       `json:"escrowAmount" db:"escrow_amount"`
	EscrowStatus         EscrowStatus `json:"escrowStatus" db:"escrow_status"`
	SettlementReference  *string      `json:"settlementReference,omitempty" db:"settlement_reference"`
	SettlementAt         *time.Time   `json:"settlementAt,omitempty" db:"settlement_at"`
	Version              int          `json:"-" db:"version"`
	CreatedAt            time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time    `json:"updatedAt" db:"updated_at"`
}

// TaskInsert carries the fields accepted on CreateJob.
type TaskInsert struct {
	Title         string `db:"title"`
	Description   string `db:"description"`
	Budget        string `db:"budget"`
	CreatorWallet string `db:"creator_wallet"`
	EscrowAmount  string `db:"escrow_amount"`
}

func (t *TaskInsert) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(t.CreatorWallet) == "" {
		return fmt.Errorf("creatorWallet is required")
	}
	return nil
}

type TaskModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseTaskQuery = `
SELECT
	id, title, description, budget, status, creator_wallet, assigned_agent_ids,
	work_results, escrow_amount, escrow_status, settlement_reference, settlement_at,
	version, created_at, updated_at
FROM tasks
`

func (m *TaskModel) Create(ctx context.Context, sqlExec db.SQLExecuter, in TaskInsert) (*Task, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validating task insert: %w", err)
	}

	query := `
		INSERT INTO tasks (title, description, budget, creator_wallet, escrow_amount)
		VALUES ($1, $2, $3, LOWER($4), $5)
		RETURNING id, title, description, budget, status, creator_wallet, assigned_agent_ids,
			work_results, escrow_amount, escrow_status, settlement_reference, settlement_at,
			version, created_at, updated_at`

	var task Task
	err := sqlExec.GetContext(ctx, &task, query, in.Title, in.Description, in.Budget, in.CreatorWallet, nullableAmount(in.EscrowAmount))
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

func (m *TaskModel) Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Task, error) {
	var task Task
	query := fmt.Sprintf(`%s WHERE id = $1`, baseTaskQuery)
	err := sqlExec.GetContext(ctx, &task, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	return &task, nil
}

func (m *TaskModel) ListByCreator(ctx context.Context, sqlExec db.SQLExecuter, creatorWallet string) ([]Task, error) {
	tasks := []Task{}
	query := fmt.Sprintf(`%s WHERE LOWER(creator_wallet) = LOWER($1) ORDER BY created_at DESC`, baseTaskQuery)
	if err := sqlExec.SelectContext(ctx, &tasks, query, creatorWallet); err != nil {
		return nil, fmt.Errorf("listing tasks for creator %s: %w", creatorWallet, err)
	}
	return tasks, nil
}

// ListPendingRecovery returns tasks left in a status=settlement or
// escrowStatus=pending state, used by the dispatcher's restart-recovery
// scan so that no task is stranded after a crash.
func (m *TaskModel) ListPendingRecovery(ctx context.Context, sqlExec db.SQLExecuter) ([]Task, error) {
	tasks := []Task{}
	query := fmt.Sprintf(`%s WHERE status = $1 OR escrow_status = $2 ORDER BY updated_at ASC`, baseTaskQuery)
	if err := sqlExec.SelectContext(ctx, &tasks, query, TaskStatusSettlement, EscrowStatusPending); err != nil {
		return nil, fmt.Errorf("listing tasks pending recovery: %w", err)
	}
	return tasks, nil
}

// UpdateTransactional reads the current Task under a row lock, runs fn
// against a copy, and persists the result in the same transaction. fn is
// responsible for validating the attempted transition (see the task state
// machine); any error it returns aborts the transaction without writing.
//
// The row lock (SELECT ... FOR UPDATE) gives per-Task causal ordering:
// concurrent UpdateTransactional calls on the same id serialize at the
// database rather than racing to overwrite each other's writes.
func (m *TaskModel) UpdateTransactional(ctx context.Context, id string, fn func(task *Task) error) (*Task, error) {
	return db.RunInTransactionWithResult(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*Task, error) {
		var task Task
		query := fmt.Sprintf(`%s WHERE id = $1 FOR UPDATE`, baseTaskQuery)
		if err := dbTx.GetContext(ctx, &task, query, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrRecordNotFound
			}
			return nil, fmt.Errorf("locking task %s: %w", id, err)
		}

		if err := fn(&task); err != nil {
			return nil, err
		}

		updateQuery := `
			UPDATE tasks
			SET title = $1, description = $2, budget = $3, status = $4,
				assigned_agent_ids = $5, work_results = $6, escrow_amount = $7,
				escrow_status = $8, settlement_reference = $9, settlement_at = $10,
				version = version + 1, updated_at = NOW()
			WHERE id = $11
			RETURNING id, title, description, budget, status, creator_wallet, assigned_agent_ids,
				work_results, escrow_amount, escrow_status, settlement_reference, settlement_at,
				version, created_at, updated_at`

		var updated Task
		err := dbTx.GetContext(ctx, &updated, updateQuery,
			task.Title, task.Description, task.Budget, task.Status,
			pq.Array([]string(task.AssignedAgentIDs)), task.WorkResults, task.EscrowAmount,
			task.EscrowStatus, task.SettlementReference, task.SettlementAt, id)
		if err != nil {
			return nil, fmt.Errorf("persisting task %s: %w", id, err)
		}
		return &updated, nil
	})
}
