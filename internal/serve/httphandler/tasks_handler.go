package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/dispatcher"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
	"github.com/agentmarket/coordinator/internal/statemachine"
)

type TasksHandler struct {
	Models     *data.Models
	Dispatcher *dispatcher.Dispatcher
}

// taskView is what GET /tasks/:id and GET /tasks render: workResults are
// redacted unless the caller is the task's creator.
type taskView struct {
	data.Task
	WorkResults *data.WorkResults `json:"workResults,omitempty"`
}

func redact(task data.Task, callerWallet string) taskView {
	results := task.WorkResults
	view := taskView{Task: task}
	view.Task.WorkResults = nil
	if callerWallet != "" && strings.EqualFold(callerWallet, task.CreatorWallet) {
		view.WorkResults = &results
	}
	return view
}

// ListByCreator requires an address and returns only tasks that caller
// created; it never lists tasks for an absent address.
func (h TasksHandler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := r.URL.Query().Get("address")
	if address == "" {
		httpjson.RenderStatus(w, http.StatusOK, []taskView{}, httpjson.JSON)
		return
	}

	tasks, err := h.Models.Tasks.ListByCreator(ctx, h.Models.DBConnectionPool, address)
	if err != nil {
		httperror.InternalError(ctx, "listing tasks", err).Render(w)
		return
	}

	views := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, redact(t, address))
	}
	httpjson.RenderStatus(w, http.StatusOK, views, httpjson.JSON)
}

func (h TasksHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := r.URL.Query().Get("address")

	id, ok := parseUUIDParam(w, "task", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	task, err := h.Models.Tasks.Get(ctx, id, h.Models.DBConnectionPool)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("task %s not found", id), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "loading task", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, redact(*task, address), httpjson.JSON)
}

type submitWorkRequest struct {
	WorkerID string          `json:"workerId"`
	Result   json.RawMessage `json:"result"`
}

// SubmitWork records a worker's deliverable and enqueues settlement.
func (h TasksHandler) SubmitWork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req submitWorkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	now := time.Now().UTC()
	var effects []statemachine.SideEffect
	updated, err := h.Models.Tasks.UpdateTransactional(ctx, id, func(t *data.Task) error {
		e, smErr := statemachine.SubmitWork(t, req.WorkerID, req.Result, now)
		effects = e
		return smErr
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("task %s not found", id), err).Render(w)
			return
		}
		renderTransitionError(ctx, w, err)
		return
	}

	if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
		ActorID: req.WorkerID,
		TaskID:  updated.ID,
		Action:  data.ActionWorkSubmitted,
	}); err != nil {
		httperror.InternalError(ctx, "recording work submitted activity", err).Render(w)
		return
	}

	for _, effect := range effects {
		if effect.Kind == statemachine.SideEffectEnqueueSettle {
			h.Dispatcher.Enqueue(dispatcher.Action{Kind: dispatcher.ActionSettle, TaskID: updated.ID, WorkerID: effect.WorkerID})
		}
	}

	httpjson.RenderStatus(w, http.StatusOK, updated, httpjson.JSON)
}

type refundRequest struct {
	CallerWallet string `json:"callerWallet"`
}

// Refund requests a creator-initiated refund. Authorization is checked
// before the state machine is consulted so a wrong-wallet caller sees 403
// rather than a generic InvalidTransition.
func (h TasksHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	task, err := h.Models.Tasks.Get(ctx, id, h.Models.DBConnectionPool)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("task %s not found", id), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "loading task", err).Render(w)
		return
	}
	if !strings.EqualFold(req.CallerWallet, task.CreatorWallet) {
		httperror.AuthorizationError("only the task's creator may request a refund", nil).Render(w)
		return
	}

	var effects []statemachine.SideEffect
	updated, err := h.Models.Tasks.UpdateTransactional(ctx, id, func(t *data.Task) error {
		e, smErr := statemachine.RefundRequested(t, req.CallerWallet)
		effects = e
		return smErr
	})
	if err != nil {
		renderTransitionError(ctx, w, err)
		return
	}

	for _, effect := range effects {
		if effect.Kind == statemachine.SideEffectEnqueueRefund {
			h.Dispatcher.Enqueue(dispatcher.Action{Kind: dispatcher.ActionRefund, TaskID: updated.ID})
		}
	}

	httpjson.RenderStatus(w, http.StatusOK, updated, httpjson.JSON)
}

type adminStatusRequest struct {
	Status  string `json:"status"`
	AgentID string `json:"agentId"`
}

// PatchStatus is the status override. It applies ForceClose (review/held ->
// reversed/refunded), so "reversed" is the only status value this endpoint
// accepts. It performs no caller authorization check: no admin identity is
// configured or verified, and the request's agentId is not read.
func (h TasksHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var req adminStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}
	if data.TaskStatus(req.Status) != data.TaskStatusReversed {
		httperror.ValidationError(fmt.Sprintf("unsupported admin status override %q", req.Status), nil, nil).Render(w)
		return
	}

	var effects []statemachine.SideEffect
	updated, err := h.Models.Tasks.UpdateTransactional(ctx, id, func(t *data.Task) error {
		e, smErr := statemachine.ForceClose(t)
		effects = e
		return smErr
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("task %s not found", id), err).Render(w)
			return
		}
		renderTransitionError(ctx, w, err)
		return
	}

	if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
		ActorID: data.SystemActor,
		TaskID:  updated.ID,
		Action:  data.ActionStatusChangedTo(updated.Status),
	}); err != nil {
		httperror.InternalError(ctx, "recording status change activity", err).Render(w)
		return
	}

	for _, effect := range effects {
		if effect.Kind == statemachine.SideEffectEnqueueRefund {
			h.Dispatcher.Enqueue(dispatcher.Action{Kind: dispatcher.ActionRefund, TaskID: updated.ID})
		}
	}

	httpjson.RenderStatus(w, http.StatusOK, updated, httpjson.JSON)
}

// ActivityFeed requires an address and returns that creator's most recent
// 30 activity entries, newest first.
func (h TasksHandler) ActivityFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := r.URL.Query().Get("address")
	if address == "" {
		httperror.ValidationError("address is required", nil, nil).Render(w)
		return
	}

	tasks, err := h.Models.Tasks.ListByCreator(ctx, h.Models.DBConnectionPool, address)
	if err != nil {
		httperror.InternalError(ctx, "listing tasks for activity feed", err).Render(w)
		return
	}
	taskIDs := make([]string, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
	}

	activities, err := h.Models.Activities.ListByTasks(ctx, h.Models.DBConnectionPool, taskIDs, 30)
	if err != nil {
		httperror.InternalError(ctx, "listing activity feed", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, activities, httpjson.JSON)
}
