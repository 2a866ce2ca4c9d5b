package data

import (
	"context"

	"github.com/agentmarket/coordinator/db"
)

// AgentStore is the repository boundary for agents, satisfied by the
// Postgres-backed AgentModel and by memstore's in-memory implementation so
// tests can substitute one for the other without touching a database.
type AgentStore interface {
	Upsert(ctx context.Context, in AgentUpsert) (*Agent, error)
	Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Agent, error)
	GetByHandle(ctx context.Context, handle string, sqlExec db.SQLExecuter) (*Agent, error)
	GetAll(ctx context.Context, sqlExec db.SQLExecuter) ([]Agent, error)
	Update(ctx context.Context, id string, in AgentUpdate) (*Agent, error)
	UpdateReputation(ctx context.Context, sqlExec db.SQLExecuter, id string, success bool) (*Agent, error)
	MarkIdentityRegistered(ctx context.Context, sqlExec db.SQLExecuter, id, identityNode string) error
}

// TaskStore is the repository boundary for tasks, including the
// UpdateTransactional row-locking update used by every state transition.
type TaskStore interface {
	Create(ctx context.Context, sqlExec db.SQLExecuter, in TaskInsert) (*Task, error)
	Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Task, error)
	ListByCreator(ctx context.Context, sqlExec db.SQLExecuter, creatorWallet string) ([]Task, error)
	ListPendingRecovery(ctx context.Context, sqlExec db.SQLExecuter) ([]Task, error)
	UpdateTransactional(ctx context.Context, id string, fn func(task *Task) error) (*Task, error)
}

// JobPostingStore is the repository boundary for job postings.
type JobPostingStore interface {
	Create(ctx context.Context, sqlExec db.SQLExecuter, in JobPostingInsert) (*JobPosting, error)
	Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*JobPosting, error)
	GetByTaskID(ctx context.Context, sqlExec db.SQLExecuter, taskID string) (*JobPosting, error)
	List(ctx context.Context, sqlExec db.SQLExecuter) ([]JobPosting, error)
	UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, id string, status JobPostingStatus) error
}

// BidStore is the repository boundary for bids, including the
// compare-and-set MarkAccepted used to enforce at most one accepted bid per
// job posting.
type BidStore interface {
	Append(ctx context.Context, sqlExec db.SQLExecuter, in BidInsert) (*Bid, error)
	Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Bid, error)
	ListByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) ([]Bid, error)
	MarkAccepted(ctx context.Context, sqlExec db.SQLExecuter, bidID string) (*Bid, error)
}

// ActivityStore is the repository boundary for the append-only activity log.
type ActivityStore interface {
	Append(ctx context.Context, sqlExec db.SQLExecuter, in ActivityInsert) (*Activity, error)
	ListByTasks(ctx context.Context, sqlExec db.SQLExecuter, taskIDs []string, limit int) ([]Activity, error)
	ListByTask(ctx context.Context, sqlExec db.SQLExecuter, taskID string) ([]Activity, error)
}

var (
	_ AgentStore      = (*AgentModel)(nil)
	_ TaskStore       = (*TaskModel)(nil)
	_ JobPostingStore = (*JobPostingModel)(nil)
	_ BidStore        = (*BidModel)(nil)
	_ ActivityStore   = (*ActivityModel)(nil)
)
