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

var ErrAlreadyAccepted = errors.New("a bid is already accepted for this job")

// Bid is a worker's proposal against a JobPosting.
type Bid struct {
	ID              string    `json:"id" db:"id"`
	JobID           string    `json:"jobId" db:"job_id"`
	WorkerID        string    `json:"workerId" db:"worker_id"`
	WorkerHandle    string    `json:"workerHandle" db:"worker_handle"`
	Message         string    `json:"message" db:"message"`
	RelevanceScore  int       `json:"relevanceScore" db:"relevance_score"`
	EstimatedTime   string    `json:"estimatedTime" db:"estimated_time"`
	ProposedAmount  string    `json:"proposedAmount" db:"proposed_amount"`
	Accepted        bool      `json:"accepted" db:"accepted"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

type BidInsert struct {
	JobID          string `db:"job_id"`
	WorkerID       string `db:"worker_id"`
	WorkerHandle   string `db:"worker_handle"`
	Message        string `db:"message"`
	RelevanceScore int    `db:"relevance_score"`
	EstimatedTime  string `db:"estimated_time"`
	ProposedAmount string `db:"proposed_amount"`
}

func (b *BidInsert) Validate() error {
	if strings.TrimSpace(b.JobID) == "" {
		return fmt.Errorf("jobId is required")
	}
	if strings.TrimSpace(b.WorkerID) == "" {
		return fmt.Errorf("workerId is required")
	}
	if b.RelevanceScore < 0 || b.RelevanceScore > 100 {
		return fmt.Errorf("relevanceScore must be between 0 and 100")
	}
	return nil
}

type BidModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseBidQuery = `
SELECT
	id, job_id, worker_id, worker_handle, message, relevance_score,
	estimated_time, proposed_amount, accepted, created_at
FROM bids
`

// Append appends a new bid under a JobPosting.
func (m *BidModel) Append(ctx context.Context, sqlExec db.SQLExecuter, in BidInsert) (*Bid, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("validating bid: %w", err)
	}

	query := `
		INSERT INTO bids (job_id, worker_id, worker_handle, message, relevance_score, estimated_time, proposed_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, job_id, worker_id, worker_handle, message, relevance_score,
			estimated_time, proposed_amount, accepted, created_at`

	var bid Bid
	err := sqlExec.GetContext(ctx, &bid, query, in.JobID, in.WorkerID, in.WorkerHandle, in.Message, in.RelevanceScore, in.EstimatedTime, in.ProposedAmount)
	if err != nil {
		return nil, fmt.Errorf("appending bid to job %s: %w", in.JobID, err)
	}
	return &bid, nil
}

func (m *BidModel) Get(ctx context.Context, id string, sqlExec db.SQLExecuter) (*Bid, error) {
	var bid Bid
	query := fmt.Sprintf(`%s WHERE id = $1`, baseBidQuery)
	err := sqlExec.GetContext(ctx, &bid, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting bid %s: %w", id, err)
	}
	return &bid, nil
}

func (m *BidModel) ListByJob(ctx context.Context, sqlExec db.SQLExecuter, jobID string) ([]Bid, error) {
	bids := []Bid{}
	query := fmt.Sprintf(`%s WHERE job_id = $1 ORDER BY created_at ASC`, baseBidQuery)
	if err := sqlExec.SelectContext(ctx, &bids, query, jobID); err != nil {
		return nil, fmt.Errorf("listing bids for job %s: %w", jobID, err)
	}
	return bids, nil
}

// MarkAccepted marks bidID as accepted. The partial unique index
// idx_bids_one_accepted_per_job enforces at most one accepted bid per job
// at the database level; a concurrent acceptance attempt surfaces here as
// ErrAlreadyAccepted rather than silently overwriting the winner.
func (m *BidModel) MarkAccepted(ctx context.Context, sqlExec db.SQLExecuter, bidID string) (*Bid, error) {
	query := `
		UPDATE bids SET accepted = TRUE
		WHERE id = $1
		RETURNING id, job_id, worker_id, worker_handle, message, relevance_score,
			estimated_time, proposed_amount, accepted, created_at`

	var bid Bid
	err := sqlExec.GetContext(ctx, &bid, query, bidID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "idx_bids_one_accepted_per_job" {
			return nil, ErrAlreadyAccepted
		}
		return nil, fmt.Errorf("marking bid %s accepted: %w", bidID, err)
	}
	return &bid, nil
}
