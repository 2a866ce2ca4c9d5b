package data

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/agentmarket/coordinator/db"
)

// Reserved actor id for coordinator-originated activity entries.
const SystemActor = "SYSTEM"

const (
	ActionTaskCreated        = "TASK_CREATED"
	ActionEscrowHeld         = "ESCROW_HELD"
	ActionBidSubmitted       = "BID_SUBMITTED"
	ActionBidAccepted        = "BID_ACCEPTED"
	ActionWorkSubmitted      = "WORK_SUBMITTED"
	ActionPaymentSettled     = "PAYMENT_SETTLED"
	ActionSettlementFailed   = "SETTLEMENT_FAILED"
	ActionRefundProcessed    = "REFUND_PROCESSED"
)

// ActionStatusChangedTo builds the STATUS_CHANGED_TO_<X> label for a given
// target status.
func ActionStatusChangedTo(status TaskStatus) string {
	return fmt.Sprintf("STATUS_CHANGED_TO_%s", statusLabel(status))
}

func statusLabel(status TaskStatus) string {
	label := ""
	for _, r := range string(status) {
		switch r {
		case '-':
			label += "_"
		default:
			if r >= 'a' && r <= 'z' {
				label += string(r - 32)
			} else {
				label += string(r)
			}
		}
	}
	return label
}

// Activity is one immutable entry in the append-only event log for a Task.
type Activity struct {
	ID        string    `json:"id" db:"id"`
	ActorID   string    `json:"actorId" db:"actor_id"`
	TaskID    string    `json:"taskId" db:"task_id"`
	Action    string    `json:"action" db:"action"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ActivityInsert struct {
	ActorID string `db:"actor_id"`
	TaskID  string `db:"task_id"`
	Action  string `db:"action"`
}

type ActivityModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Append writes a new, immutable Activity entry. Timestamps are assigned by
// the database clock so that entries for a single Task are monotonically
// ordered in commit order.
func (m *ActivityModel) Append(ctx context.Context, sqlExec db.SQLExecuter, in ActivityInsert) (*Activity, error) {
	query := `
		INSERT INTO activities (actor_id, task_id, action)
		VALUES ($1, $2, $3)
		RETURNING id, actor_id, task_id, action, created_at`

	var activity Activity
	err := sqlExec.GetContext(ctx, &activity, query, in.ActorID, in.TaskID, in.Action)
	if err != nil {
		return nil, fmt.Errorf("appending activity %s for task %s: %w", in.Action, in.TaskID, err)
	}
	return &activity, nil
}

// ListByTasks returns the most recent `limit` activities across the given
// task ids, newest first.
func (m *ActivityModel) ListByTasks(ctx context.Context, sqlExec db.SQLExecuter, taskIDs []string, limit int) ([]Activity, error) {
	if len(taskIDs) == 0 {
		return []Activity{}, nil
	}
	if limit <= 0 {
		limit = 30
	}

	activities := []Activity{}
	query := `
		SELECT id, actor_id, task_id, action, created_at
		FROM activities
		WHERE task_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`
	if err := sqlExec.SelectContext(ctx, &activities, query, pq.Array(taskIDs), limit); err != nil {
		return nil, fmt.Errorf("listing activity for tasks: %w", err)
	}
	return activities, nil
}

// ListByTask returns every activity for a single Task, oldest first — the
// order property tests assert timestamps are monotonic over.
func (m *ActivityModel) ListByTask(ctx context.Context, sqlExec db.SQLExecuter, taskID string) ([]Activity, error) {
	activities := []Activity{}
	query := `
		SELECT id, actor_id, task_id, action, created_at
		FROM activities
		WHERE task_id = $1
		ORDER BY created_at ASC`
	if err := sqlExec.SelectContext(ctx, &activities, query, taskID); err != nil {
		return nil, fmt.Errorf("listing activity for task %s: %w", taskID, err)
	}
	return activities, nil
}
