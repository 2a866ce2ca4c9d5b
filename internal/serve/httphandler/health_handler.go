package httphandler

import (
	"net/http"
	"time"

	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/db"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler is pure liveness: it never touches the database, so a
// wedged connection pool can't take the process out of the load balancer's
// liveness checks and get it killed while it's still otherwise serving.
type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpjson.RenderStatus(w, http.StatusOK, HealthResponse{
		Status:    "pass",
		Timestamp: time.Now().UTC(),
	}, httpjson.JSON)
}

// ReadinessHandler additionally pings the database connection pool: a
// coordinator that can't reach Postgres can't serve any of its endpoints
// correctly and should be taken out of rotation.
type ReadinessHandler struct {
	DBConnectionPool db.DBConnectionPool
}

func (h ReadinessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.DBConnectionPool.Ping(r.Context()); err != nil {
		httpjson.RenderStatus(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "fail",
			Timestamp: time.Now().UTC(),
		}, httpjson.JSON)
		return
	}
	httpjson.RenderStatus(w, http.StatusOK, HealthResponse{
		Status:    "pass",
		Timestamp: time.Now().UTC(),
	}, httpjson.JSON)
}
