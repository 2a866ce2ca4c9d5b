package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/identity"
	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
)

type AgentsHandler struct {
	Models          *data.Models
	IdentityAdapter identity.Adapter
}

type upsertAgentRequest struct {
	Handle       string   `json:"handle"`
	Wallet       string   `json:"wallet"`
	Role         string   `json:"role"`
	Skills       []string `json:"skills"`
	MaxLiability string   `json:"maxLiability"`
}

type patchAgentRequest struct {
	Role         *string   `json:"role"`
	Skills       *[]string `json:"skills"`
	Active       *bool     `json:"active"`
	MaxLiability *string   `json:"maxLiability"`
}

func (h AgentsHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agents, err := h.Models.Agents.GetAll(ctx, h.Models.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "listing agents", err).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusOK, agents, httpjson.JSON)
}

// Create upserts a worker by handle and, on first registration, registers
// the handle with the identity adapter and persists the returned node
// reference.
func (h AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	agent, err := h.Models.Agents.Upsert(ctx, data.AgentUpsert{
		Handle:       req.Handle,
		Wallet:       req.Wallet,
		Role:         req.Role,
		Skills:       req.Skills,
		MaxLiability: req.MaxLiability,
	})
	if err != nil {
		httperror.ValidationError("", err, nil).Render(w)
		return
	}

	if !agent.IdentityRegistered {
		nodeRef, err := h.IdentityAdapter.Register(ctx, agent.Handle, agent.Wallet, map[string]string{
			identity.AttrRole:   agent.Role,
			identity.AttrSkills: joinSkills(agent.Skills),
		})
		if err != nil {
			logging.Ctx(ctx).Errorf("registering agent %s with identity adapter: %s", agent.Handle, err)
		} else if err := h.Models.Agents.MarkIdentityRegistered(ctx, h.Models.DBConnectionPool, agent.ID, nodeRef); err != nil {
			logging.Ctx(ctx).Errorf("marking agent %s identity registered: %s", agent.ID, err)
		} else {
			agent.IdentityRegistered = true
			agent.IdentityNode = nodeRef
		}
	}

	httpjson.RenderStatus(w, http.StatusCreated, agent, httpjson.JSON)
}

func (h AgentsHandler) Patch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req patchAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	agent, err := h.Models.Agents.Update(ctx, id, data.AgentUpdate{
		Role:         req.Role,
		Skills:       req.Skills,
		Active:       req.Active,
		MaxLiability: req.MaxLiability,
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("agent %s not found", id), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "updating agent", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, agent, httpjson.JSON)
}

func joinSkills(skills data.StringArray) string {
	out := ""
	for i, s := range skills {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
