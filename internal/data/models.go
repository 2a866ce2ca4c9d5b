package data

import (
	"errors"

	"github.com/agentmarket/coordinator/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrRecordAlreadyExists     = errors.New("record already exists")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
)

// Models bundles the repositories for every entity in the marketplace's data
// model. Fields are typed as interfaces (AgentStore, TaskStore, ...) rather
// than concrete structs so tests can substitute memstore's in-memory
// implementation for the Postgres-backed one.
type Models struct {
	Agents           AgentStore
	Tasks            TaskStore
	JobPostings      JobPostingStore
	Bids             BidStore
	Activities       ActivityStore
	DBConnectionPool db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Agents:           &AgentModel{dbConnectionPool: dbConnectionPool},
		Tasks:            &TaskModel{dbConnectionPool: dbConnectionPool},
		JobPostings:      &JobPostingModel{dbConnectionPool: dbConnectionPool},
		Bids:             &BidModel{dbConnectionPool: dbConnectionPool},
		Activities:       &ActivityModel{dbConnectionPool: dbConnectionPool},
		DBConnectionPool: dbConnectionPool,
	}, nil
}
