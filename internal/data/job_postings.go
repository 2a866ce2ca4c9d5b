package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/agentmarket/coordinator/db"
)

type JobPostingStatus string

const (
	JobPostingStatusOpen     JobPostingStatus = "open"
	JobPostingStatusAssigned JobPostingStatus = "assigned"
	JobPostingStatusClosed   JobPostingStatus = "closed"
)

// JobPosting is the world-readable listing a Task is advertised under. It
// shares its lifetime with exactly one Task (1:1, neither owns the other).
type JobPosting struct {
	ID             string           `json:"id" db:"id"`
	TaskID         string           `json:"taskId" db:"task_id"`
	CreatorWallet  string           `json:"creatorWallet" db:"creator_wallet"`
	Title          string           `json:"title" db:"title"`
	Description    string           `json:"description" db:"description"`
	Budget         string           `json:"budget" db:"budget"`
	RequiredSkills StringArray      `json:"requiredSkills" db:"required_skills"`
	Status         JobPostingStatus `json:"status" db:"status"`
	PostedAt       time.Time        `json:"postedAt" db:"posted_at"`
	CreatedAt      time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time        `json:"updatedAt" db:"updated_at"`
}

type JobPostingInsert struct {
	TaskID         string   `db:"task_id"`
	CreatorWallet  string   `db:"creator_wallet"`
	Title          string   `db:"title"`
	Description    string   `db:"description"`
	Budget         string   `db:"budget"`
	RequiredSkills []string `db:"required_skills"`
}

func (p *JobPostingInsert) Validate() error {
	if strings.TrimSpace(p.TaskID) == "" {
		return fmt.Errorf("taskId is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

type JobPostingModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseJobPostingQuery = `
SELECT
	id, task_id, creator_wallet, title, description, budget, required_skills,
	status, posted_at, created_at, updated_at
FROM job_postings
`

func (m *JobPostingModel) Create(ctx context.Context, sqlExec db.SQLExecuter, in JobPostingInsert) (*JobPosting, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validating job posting insert: %w", err)
	}

	query := `
		INSERT INTO job_postings (task_id, creator_wallet, title, description, budget, required_skills)
		VALUES ($1, LOWER($2), $3, $4, $5, $6)
		RETURNING id, task_id, creator_wallet, title, description, budget, required_skills,
			status, posted_at, created_at, updated_at`

	var posting JobPosting
	err := sqlExec.GetContext(ctx, &posting, query, in.TaskID, in.CreatorWallet, in.Title, in.Description, in.Budget, pq.Array(in.RequiredSkills))
	if err != nil {
		return nil, fmt.Errorf("creating job posting for task %s: %w", in.TaskID, err)
	}
	return &posting, nil
}

func (m *JobPostingModel) Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*JobPosting, error) {
	var posting JobPosting
	query := fmt.Sprintf(`%s WHERE id = $1`, baseJobPostingQuery)
	err := sqlExec.GetContext(ctx, &posting, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting job posting %s: %w", id, err)
	}
	return &posting, nil
}

func (m *JobPostingModel) GetByTaskID(ctx context.Context, sqlExec db.SQLExecuter, taskID string) (*JobPosting, error) {
	var posting JobPosting
	query := fmt.Sprintf(`%s WHERE task_id = $1`, baseJobPostingQuery)
	err := sqlExec.GetContext(ctx, &posting, query, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting job posting for task %s: %w", taskID, err)
	}
	return &posting, nil
}

func (m *JobPostingModel) List(ctx context.Context, sqlExec db.SQLExecuter) ([]JobPosting, error) {
	postings := []JobPosting{}
	query := fmt.Sprintf(`%s ORDER BY posted_at DESC`, baseJobPostingQuery)
	if err := sqlExec.SelectContext(ctx, &postings, query); err != nil {
		return nil, fmt.Errorf("listing job postings: %w", err)
	}
	return postings, nil
}

// UpdateStatus mirrors the owning Task's status onto the posting (open
// stays open; anything else maps to assigned or closed by the caller).
func (m *JobPostingModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, id string, status JobPostingStatus) error {
	query := `UPDATE job_postings SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating job posting %s status: %w", id, err)
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
