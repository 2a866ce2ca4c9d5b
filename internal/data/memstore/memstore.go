// Package memstore is an in-memory substitute for the Postgres-backed
// internal/data repositories, built for tests that need a working Store
// without a database: dispatcher tests and handler tests construct a
// *data.Models with memstore.NewModels() instead of a db.DBConnectionPool.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentmarket/coordinator/db"
	"github.com/agentmarket/coordinator/internal/data"
)

// Store holds every entity collection behind one mutex, mirroring the
// row-locking serialization Postgres gives TaskModel.UpdateTransactional and
// the unique-index serialization BidModel.MarkAccepted relies on.
type Store struct {
	mu sync.Mutex

	agents       map[string]*data.Agent
	agentHandles map[string]string // lower(handle) -> agent id

	tasks map[string]*data.Task

	jobPostings       map[string]*data.JobPosting
	jobPostingsByTask map[string]string // taskID -> posting id

	bids       map[string]*data.Bid
	bidsByJob  map[string][]string // jobID -> bid ids, insertion order
	acceptedOf map[string]string   // jobID -> accepted bid id, if any

	activities []*data.Activity
}

func New() *Store {
	return &Store{
		agents:            map[string]*data.Agent{},
		agentHandles:      map[string]string{},
		tasks:             map[string]*data.Task{},
		jobPostings:       map[string]*data.JobPosting{},
		jobPostingsByTask: map[string]string{},
		bids:              map[string]*data.Bid{},
		bidsByJob:         map[string][]string{},
		acceptedOf:        map[string]string{},
	}
}

// NewModels builds a *data.Models whose repositories are all backed by a
// fresh in-memory Store. DBConnectionPool is left nil: memstore's methods
// ignore the db.SQLExecuter parameter they're handed, so callers written
// against *data.Models work unmodified against either backend.
func NewModels() *data.Models {
	s := New()
	return &data.Models{
		Agents:      agentStore{s},
		Tasks:       taskStore{s},
		JobPostings: jobPostingStore{s},
		Bids:        bidStore{s},
		Activities:  activityStore{s},
	}
}

func newID() string {
	return uuid.New().String()
}

func clampReputation(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ---- agents ----

type agentStore struct{ s *Store }

var _ data.AgentStore = agentStore{}

func (a agentStore) Upsert(ctx context.Context, in data.AgentUpsert) (*data.Agent, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := strings.ToLower(in.Handle)
	if id, ok := s.agentHandles[handle]; ok {
		existing := *s.agents[id]
		return &existing, nil
	}

	now := time.Now().UTC()
	agent := &data.Agent{
		ID:           newID(),
		Handle:       in.Handle,
		Wallet:       strings.ToLower(in.Wallet),
		Role:         in.Role,
		Skills:       data.StringArray(in.Skills),
		Reputation:   data.DefaultReputation,
		Active:       true,
		MaxLiability: nullableAmount(in.MaxLiability),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.agents[agent.ID] = agent
	s.agentHandles[handle] = agent.ID

	out := *agent
	return &out, nil
}

func nullableAmount(amount string) string {
	if strings.TrimSpace(amount) == "" {
		return "0"
	}
	return amount
}

func (a agentStore) Get(ctx context.Context, id string, _ db.SQLExecuter) (*data.Agent, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *agent
	return &out, nil
}

func (a agentStore) GetByHandle(ctx context.Context, handle string, _ db.SQLExecuter) (*data.Agent, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.agentHandles[strings.ToLower(handle)]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *s.agents[id]
	return &out, nil
}

func (a agentStore) GetAll(ctx context.Context, _ db.SQLExecuter) ([]data.Agent, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]data.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, *agent)
	}
	return out, nil
}

func (a agentStore) Update(ctx context.Context, id string, in data.AgentUpdate) (*data.Agent, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	if in.Role != nil {
		agent.Role = *in.Role
	}
	if in.Skills != nil {
		agent.Skills = data.StringArray(*in.Skills)
	}
	if in.Active != nil {
		agent.Active = *in.Active
	}
	if in.MaxLiability != nil {
		agent.MaxLiability = *in.MaxLiability
	}
	agent.UpdatedAt = time.Now().UTC()
	out := *agent
	return &out, nil
}

func (a agentStore) UpdateReputation(ctx context.Context, _ db.SQLExecuter, id string, success bool) (*data.Agent, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	delta := 2
	if success {
		agent.TasksCompleted++
	} else {
		delta = -5
		agent.TasksFailed++
	}
	agent.Reputation = clampReputation(agent.Reputation + delta)
	agent.UpdatedAt = time.Now().UTC()
	out := *agent
	return &out, nil
}

func (a agentStore) MarkIdentityRegistered(ctx context.Context, _ db.SQLExecuter, id, identityNode string) error {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.agents[id]
	if !ok {
		return data.ErrRecordNotFound
	}
	agent.IdentityRegistered = true
	agent.IdentityNode = identityNode
	agent.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- tasks ----

type taskStore struct{ s *Store }

var _ data.TaskStore = taskStore{}

func (t taskStore) Create(ctx context.Context, _ db.SQLExecuter, in data.TaskInsert) (*data.Task, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	task := &data.Task{
		ID:            newID(),
		Title:         in.Title,
		Description:   in.Description,
		Budget:        in.Budget,
		Status:        data.TaskStatusOpen,
		CreatorWallet: strings.ToLower(in.CreatorWallet),
		EscrowAmount:  nullableAmount(in.EscrowAmount),
		EscrowStatus:  data.EscrowStatusNone,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.tasks[task.ID] = task
	out := *task
	return &out, nil
}

func (t taskStore) Get(ctx context.Context, id string, _ db.SQLExecuter) (*data.Task, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *task
	return &out, nil
}

func (t taskStore) ListByCreator(ctx context.Context, _ db.SQLExecuter, creatorWallet string) ([]data.Task, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []data.Task{}
	for _, task := range s.tasks {
		if strings.EqualFold(task.CreatorWallet, creatorWallet) {
			out = append(out, *task)
		}
	}
	return out, nil
}

func (t taskStore) ListPendingRecovery(ctx context.Context, _ db.SQLExecuter) ([]data.Task, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []data.Task{}
	for _, task := range s.tasks {
		if task.Status == data.TaskStatusSettlement || task.EscrowStatus == data.EscrowStatusPending {
			out = append(out, *task)
		}
	}
	return out, nil
}

// UpdateTransactional holds the Store mutex for the duration of fn, giving
// the same per-task serialization the Postgres row lock gives the real
// implementation: two concurrent callers on the same id cannot interleave.
func (t taskStore) UpdateTransactional(ctx context.Context, id string, fn func(task *data.Task) error) (*data.Task, error) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	working := *task
	if err := fn(&working); err != nil {
		return nil, err
	}
	working.Version = task.Version + 1
	working.UpdatedAt = time.Now().UTC()
	s.tasks[id] = &working

	out := working
	return &out, nil
}

// ---- job postings ----

type jobPostingStore struct{ s *Store }

var _ data.JobPostingStore = jobPostingStore{}

func (j jobPostingStore) Create(ctx context.Context, _ db.SQLExecuter, in data.JobPostingInsert) (*data.JobPosting, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	posting := &data.JobPosting{
		ID:             newID(),
		TaskID:         in.TaskID,
		CreatorWallet:  strings.ToLower(in.CreatorWallet),
		Title:          in.Title,
		Description:    in.Description,
		Budget:         in.Budget,
		RequiredSkills: data.StringArray(in.RequiredSkills),
		Status:         data.JobPostingStatusOpen,
		PostedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.jobPostings[posting.ID] = posting
	s.jobPostingsByTask[in.TaskID] = posting.ID
	out := *posting
	return &out, nil
}

func (j jobPostingStore) Get(ctx context.Context, id string, _ db.SQLExecuter) (*data.JobPosting, error) {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()
	posting, ok := s.jobPostings[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *posting
	return &out, nil
}

func (j jobPostingStore) GetByTaskID(ctx context.Context, _ db.SQLExecuter, taskID string) (*data.JobPosting, error) {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.jobPostingsByTask[taskID]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *s.jobPostings[id]
	return &out, nil
}

func (j jobPostingStore) List(ctx context.Context, _ db.SQLExecuter) ([]data.JobPosting, error) {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]data.JobPosting, 0, len(s.jobPostings))
	for _, posting := range s.jobPostings {
		out = append(out, *posting)
	}
	return out, nil
}

func (j jobPostingStore) UpdateStatus(ctx context.Context, _ db.SQLExecuter, id string, status data.JobPostingStatus) error {
	s := j.s
	s.mu.Lock()
	defer s.mu.Unlock()
	posting, ok := s.jobPostings[id]
	if !ok {
		return data.ErrRecordNotFound
	}
	posting.Status = status
	posting.UpdatedAt = time.Now().UTC()
	return nil
}

// ---- bids ----

type bidStore struct{ s *Store }

var _ data.BidStore = bidStore{}

func (b bidStore) Append(ctx context.Context, _ db.SQLExecuter, in data.BidInsert) (*data.Bid, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	bid := &data.Bid{
		ID:             newID(),
		JobID:          in.JobID,
		WorkerID:       in.WorkerID,
		WorkerHandle:   in.WorkerHandle,
		Message:        in.Message,
		RelevanceScore: in.RelevanceScore,
		EstimatedTime:  in.EstimatedTime,
		ProposedAmount: nullableAmount(in.ProposedAmount),
		CreatedAt:      time.Now().UTC(),
	}
	s.bids[bid.ID] = bid
	s.bidsByJob[in.JobID] = append(s.bidsByJob[in.JobID], bid.ID)
	out := *bid
	return &out, nil
}

func (b bidStore) Get(ctx context.Context, id string, _ db.SQLExecuter) (*data.Bid, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	bid, ok := s.bids[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	out := *bid
	return &out, nil
}

func (b bidStore) ListByJob(ctx context.Context, _ db.SQLExecuter, jobID string) ([]data.Bid, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []data.Bid{}
	for _, id := range s.bidsByJob[jobID] {
		out = append(out, *s.bids[id])
	}
	return out, nil
}

// MarkAccepted mirrors idx_bids_one_accepted_per_job: the first caller to
// mark a bid accepted for a given job wins, and every later caller for a
// different bid of that same job gets ErrAlreadyAccepted. Marking the
// already-accepted bid again succeeds and returns it.
func (b bidStore) MarkAccepted(ctx context.Context, _ db.SQLExecuter, bidID string) (*data.Bid, error) {
	s := b.s
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	if accepted, ok := s.acceptedOf[bid.JobID]; ok && accepted != bidID {
		return nil, data.ErrAlreadyAccepted
	}
	s.acceptedOf[bid.JobID] = bidID
	bid.Accepted = true
	out := *bid
	return &out, nil
}

// ---- activities ----

type activityStore struct{ s *Store }

var _ data.ActivityStore = activityStore{}

func (a activityStore) Append(ctx context.Context, _ db.SQLExecuter, in data.ActivityInsert) (*data.Activity, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	activity := &data.Activity{
		ID:        newID(),
		ActorID:   in.ActorID,
		TaskID:    in.TaskID,
		Action:    in.Action,
		CreatedAt: time.Now().UTC(),
	}
	s.activities = append(s.activities, activity)
	out := *activity
	return &out, nil
}

func (a activityStore) ListByTasks(ctx context.Context, _ db.SQLExecuter, taskIDs []string, limit int) ([]data.Activity, error) {
	if limit <= 0 {
		limit = 30
	}
	wanted := map[string]bool{}
	for _, id := range taskIDs {
		wanted[id] = true
	}

	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []data.Activity{}
	for i := len(s.activities) - 1; i >= 0 && len(out) < limit; i-- {
		if wanted[s.activities[i].TaskID] {
			out = append(out, *s.activities[i])
		}
	}
	return out, nil
}

func (a activityStore) ListByTask(ctx context.Context, _ db.SQLExecuter, taskID string) ([]data.Activity, error) {
	s := a.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []data.Activity{}
	for _, activity := range s.activities {
		if activity.TaskID == taskID {
			out = append(out, *activity)
		}
	}
	return out, nil
}
