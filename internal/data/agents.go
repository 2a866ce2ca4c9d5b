package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/agentmarket/coordinator/db"
)

// Agent is a worker in the marketplace, identified by a unique handle and
// tracked for reputation across settled tasks.
type Agent struct {
	ID                 string      `json:"id" db:"id"`
	Handle             string      `json:"handle" db:"handle"`
	Wallet             string      `json:"wallet" db:"wallet"`
	Role               string      `json:"role" db:"role"`
	Skills             StringArray `json:"skills" db:"skills"`
	Reputation         int         `json:"reputation" db:"reputation"`
	TasksCompleted      int        `json:"tasksCompleted" db:"tasks_completed"`
	TasksFailed         int        `json:"tasksFailed" db:"tasks_failed"`
	Active              bool       `json:"active" db:"active"`
	MaxLiability        string     `json:"maxLiability" db:"max_liability"`
	IdentityRegistered  bool       `json:"identityRegistered" db:"identity_registered"`
	IdentityNode        string     `json:"identityNode" db:"identity_node"`
	CreatedAt           time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time  `json:"updatedAt" db:"updated_at"`
}

// StringArray adapts a Postgres TEXT[] column to a Go string slice.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	return pq.Array([]string(a)).Value()
}

var _ driver.Valuer = (StringArray)(nil)

func (a *StringArray) Scan(src interface{}) error {
	return pq.Array((*[]string)(a)).Scan(src)
}

var _ sql.Scanner = (*StringArray)(nil)

// DefaultReputation is assigned to a worker on first registration.
const DefaultReputation = 50

// AgentUpsert carries the fields accepted on worker registration.
type AgentUpsert struct {
	Handle       string   `db:"handle"`
	Wallet       string   `db:"wallet"`
	Role         string   `db:"role"`
	Skills       []string `db:"skills"`
	MaxLiability string   `db:"max_liability"`
}

func (a *AgentUpsert) Validate() error {
	if strings.TrimSpace(a.Handle) == "" {
		return fmt.Errorf("handle is required")
	}
	if strings.TrimSpace(a.Wallet) == "" {
		return fmt.Errorf("wallet is required")
	}
	return nil
}

// AgentUpdate carries the partial fields accepted on PATCH /agents/:id.
type AgentUpdate struct {
	Role         *string   `db:"role"`
	Skills       *[]string `db:"skills"`
	Active       *bool     `db:"active"`
	MaxLiability *string   `db:"max_liability"`
}

type AgentModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseAgentQuery = `
SELECT
	id, handle, wallet, role, skills, reputation, tasks_completed, tasks_failed,
	active, max_liability, identity_registered, identity_node, created_at, updated_at
FROM agents
`

// Upsert inserts a new agent for the given handle, or returns the existing
// one unchanged if the handle is already registered. Registration is
// idempotent by handle.
func (m *AgentModel) Upsert(ctx context.Context, in AgentUpsert) (*Agent, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validating agent upsert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO agents (handle, wallet, role, skills, max_liability, reputation)
		VALUES ($1, LOWER($2), $3, $4, $5, %d)
		ON CONFLICT (handle) DO UPDATE SET handle = agents.handle
		RETURNING %s`, DefaultReputation, agentColumns)

	var agent Agent
	err := m.dbConnectionPool.GetContext(ctx, &agent, query, in.Handle, in.Wallet, in.Role, pq.Array(in.Skills), nullableAmount(in.MaxLiability))
	if err != nil {
		return nil, fmt.Errorf("upserting agent %q: %w", in.Handle, err)
	}
	return &agent, nil
}

const agentColumns = `id, handle, wallet, role, skills, reputation, tasks_completed, tasks_failed,
	active, max_liability, identity_registered, identity_node, created_at, updated_at`

func nullableAmount(amount string) string {
	if strings.TrimSpace(amount) == "" {
		return "0"
	}
	return amount
}

func (m *AgentModel) Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Agent, error) {
	var agent Agent
	query := fmt.Sprintf(`%s WHERE id = $1`, baseAgentQuery)
	err := sqlExec.GetContext(ctx, &agent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting agent %s: %w", id, err)
	}
	return &agent, nil
}

func (m *AgentModel) GetByHandle(ctx context.Context, handle string, sqlExec db.SQLExecuter) (*Agent, error) {
	var agent Agent
	query := fmt.Sprintf(`%s WHERE handle = $1`, baseAgentQuery)
	err := sqlExec.GetContext(ctx, &agent, query, handle)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting agent by handle %s: %w", handle, err)
	}
	return &agent, nil
}

func (m *AgentModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter) ([]Agent, error) {
	agents := []Agent{}
	query := fmt.Sprintf(`%s ORDER BY created_at DESC`, baseAgentQuery)
	if err := sqlExec.SelectContext(ctx, &agents, query); err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	return agents, nil
}

// Update applies a partial patch to an agent, returning ErrRecordNotFound if
// the id does not exist.
func (m *AgentModel) Update(ctx context.Context, id string, in AgentUpdate) (*Agent, error) {
	setClause, params := BuildSetClause(in)
	if setClause == "" {
		return m.Get(ctx, id, m.dbConnectionPool)
	}

	query := fmt.Sprintf(`UPDATE agents SET %s, updated_at = NOW() WHERE id = ? RETURNING %s`, setClause, agentColumns)
	params = append(params, id)
	query = m.dbConnectionPool.Rebind(query)

	var agent Agent
	err := m.dbConnectionPool.GetContext(ctx, &agent, query, params...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating agent %s: %w", id, err)
	}
	return &agent, nil
}

// UpdateReputation is used by the settlement dispatcher to record a
// completed or failed task outcome. Reputation is clamped to [0,100].
func (m *AgentModel) UpdateReputation(ctx context.Context, sqlExec db.SQLExecuter, id string, success bool) (*Agent, error) {
	delta := 2
	completedDelta := 1
	failedDelta := 0
	if !success {
		delta = -5
		completedDelta = 0
		failedDelta = 1
	}

	query := fmt.Sprintf(`
		UPDATE agents
		SET reputation = GREATEST(0, LEAST(100, reputation + $1)),
			tasks_completed = tasks_completed + $2,
			tasks_failed = tasks_failed + $3,
			updated_at = NOW()
		WHERE id = $4
		RETURNING %s`, agentColumns)

	var agent Agent
	err := sqlExec.GetContext(ctx, &agent, query, delta, completedDelta, failedDelta, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating reputation for agent %s: %w", id, err)
	}
	return &agent, nil
}

// MarkIdentityRegistered records that IdentityAdapter.Register succeeded for
// this agent, storing the returned node reference.
func (m *AgentModel) MarkIdentityRegistered(ctx context.Context, sqlExec db.SQLExecuter, id, identityNode string) error {
	query := `UPDATE agents SET identity_registered = TRUE, identity_node = $1, updated_at = NOW() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, identityNode, id)
	if err != nil {
		return fmt.Errorf("marking identity registered for agent %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}
