package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/dispatcher"
	"github.com/agentmarket/coordinator/internal/escrow"
	"github.com/agentmarket/coordinator/internal/serve/httperror"
	"github.com/agentmarket/coordinator/internal/statemachine"
	"github.com/agentmarket/coordinator/internal/utils"
)

const (
	maxTitleLength       = 140
	maxDescriptionLength = 4000
	maxBidMessageLength  = 2000
)

type JobBoardHandler struct {
	Models        *data.Models
	EscrowAdapter escrow.Adapter
	Dispatcher    *dispatcher.Dispatcher
}

// JobBoardEntry is one listing on GET /jobboard: the posting plus its bids
// and the owning task's escrow status, so a browsing client never has to
// make a second request per listing.
type JobBoardEntry struct {
	data.JobPosting
	Bids         []data.Bid       `json:"bids"`
	EscrowStatus data.EscrowStatus `json:"escrowStatus"`
}

func (h JobBoardHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postings, err := h.Models.JobPostings.List(ctx, h.Models.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "listing job postings", err).Render(w)
		return
	}

	entries := make([]JobBoardEntry, 0, len(postings))
	for _, posting := range postings {
		bids, err := h.Models.Bids.ListByJob(ctx, h.Models.DBConnectionPool, posting.ID)
		if err != nil {
			httperror.InternalError(ctx, "listing bids for job posting", err).Render(w)
			return
		}
		task, err := h.Models.Tasks.Get(ctx, posting.TaskID, h.Models.DBConnectionPool)
		if err != nil {
			httperror.InternalError(ctx, "loading task for job posting", err).Render(w)
			return
		}
		entries = append(entries, JobBoardEntry{JobPosting: posting, Bids: bids, EscrowStatus: task.EscrowStatus})
	}

	httpjson.RenderStatus(w, http.StatusOK, entries, httpjson.JSON)
}

type createJobRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Budget         string   `json:"budget"`
	RequiredSkills []string `json:"requiredSkills"`
	CreatorWallet  string   `json:"creatorWallet"`
}

// Create creates a Task and its 1:1 JobPosting. The Task starts
// open/pending; escrow is confirmed separately via confirm-escrow.
func (h JobBoardHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	if err := validateJobFields(req.Title, req.Description, req.Budget); err != nil {
		httperror.ValidationError(err.Error(), err, nil).Render(w)
		return
	}

	task, err := h.Models.Tasks.Create(ctx, h.Models.DBConnectionPool, data.TaskInsert{
		Title:         req.Title,
		Description:   req.Description,
		Budget:        req.Budget,
		CreatorWallet: req.CreatorWallet,
		EscrowAmount:  req.Budget,
	})
	if err != nil {
		httperror.ValidationError("", err, nil).Render(w)
		return
	}
	task, err = h.Models.Tasks.UpdateTransactional(ctx, task.ID, func(t *data.Task) error {
		t.EscrowStatus = data.EscrowStatusPending
		return nil
	})
	if err != nil {
		httperror.InternalError(ctx, "marking task escrow pending", err).Render(w)
		return
	}

	posting, err := h.Models.JobPostings.Create(ctx, h.Models.DBConnectionPool, data.JobPostingInsert{
		TaskID:         task.ID,
		CreatorWallet:  req.CreatorWallet,
		Title:          req.Title,
		Description:    req.Description,
		Budget:         req.Budget,
		RequiredSkills: req.RequiredSkills,
	})
	if err != nil {
		httperror.InternalError(ctx, "creating job posting", err).Render(w)
		return
	}

	if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
		ActorID: task.CreatorWallet,
		TaskID:  task.ID,
		Action:  data.ActionTaskCreated,
	}); err != nil {
		httperror.InternalError(ctx, "recording task created activity", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusCreated, posting, httpjson.JSON)
}

type confirmEscrowRequest struct {
	ExternalRef     string `json:"externalRef"`
	DepositorWallet string `json:"depositorWallet"`
}

// ConfirmEscrow attests an external deposit against the escrow adapter and,
// if it verifies, moves the task's escrow from pending to held.
func (h JobBoardHandler) ConfirmEscrow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postingID, ok := parseUUIDParam(w, "job posting", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req confirmEscrowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	posting, err := h.Models.JobPostings.Get(ctx, postingID, h.Models.DBConnectionPool)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("job posting %s not found", postingID), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "loading job posting", err).Render(w)
		return
	}

	task, err := h.Models.Tasks.Get(ctx, posting.TaskID, h.Models.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "loading task for job posting", err).Render(w)
		return
	}

	receipt, err := h.EscrowAdapter.VerifyDeposit(ctx, task.ID, req.ExternalRef, req.DepositorWallet, task.EscrowAmount)
	if err != nil {
		renderEscrowError(ctx, w, err)
		return
	}

	updated, err := h.Models.Tasks.UpdateTransactional(ctx, task.ID, func(t *data.Task) error {
		_, smErr := statemachine.DepositConfirmed(t, receipt.Reference)
		return smErr
	})
	if err != nil {
		renderTransitionError(ctx, w, err)
		return
	}

	if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
		ActorID: req.DepositorWallet,
		TaskID:  task.ID,
		Action:  data.ActionEscrowHeld,
	}); err != nil {
		httperror.InternalError(ctx, "recording escrow held activity", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, updated, httpjson.JSON)
}

type submitBidRequest struct {
	WorkerID       string `json:"workerId"`
	WorkerHandle   string `json:"workerHandle"`
	Message        string `json:"message"`
	RelevanceScore int    `json:"relevanceScore"`
	EstimatedTime  string `json:"estimatedTime"`
	ProposedAmount string `json:"proposedAmount"`
}

func (h JobBoardHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postingID, ok := parseUUIDParam(w, "job posting", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req submitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	if err := utils.ValidateAmount(req.ProposedAmount); err != nil {
		httperror.ValidationError(err.Error(), err, nil).Render(w)
		return
	}
	if req.Message != "" {
		if err := utils.ValidateStringLength(req.Message, "message", maxBidMessageLength); err != nil {
			httperror.ValidationError(err.Error(), err, nil).Render(w)
			return
		}
		if err := utils.ValidateNoHTML(req.Message); err != nil {
			httperror.ValidationError(err.Error(), err, nil).Render(w)
			return
		}
	}

	bid, err := h.Models.Bids.Append(ctx, h.Models.DBConnectionPool, data.BidInsert{
		JobID:          postingID,
		WorkerID:       req.WorkerID,
		WorkerHandle:   req.WorkerHandle,
		Message:        req.Message,
		RelevanceScore: req.RelevanceScore,
		EstimatedTime:  req.EstimatedTime,
		ProposedAmount: req.ProposedAmount,
	})
	if err != nil {
		httperror.ValidationError("", err, nil).Render(w)
		return
	}

	posting, err := h.Models.JobPostings.Get(ctx, postingID, h.Models.DBConnectionPool)
	if err == nil {
		if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
			ActorID: req.WorkerID,
			TaskID:  posting.TaskID,
			Action:  data.ActionBidSubmitted,
		}); err != nil {
			httperror.InternalError(ctx, "recording bid submitted activity", err).Render(w)
			return
		}
	}

	httpjson.RenderStatus(w, http.StatusCreated, bid, httpjson.JSON)
}

type acceptBidRequest struct {
	BidID        string `json:"bidId"`
	CallerWallet string `json:"callerWallet"`
}

// AcceptBid is the creator-only action that commits a worker to a task. The
// task is checked for eligibility (open/held) before the bid's
// compare-and-set (MarkAccepted) runs, so an out-of-order accept can't mark
// a bid accepted while leaving the posting open; MarkAccepted itself
// remains the authoritative guard against two concurrent accepts racing
// each other. The Task transition is applied as a separate,
// independently-atomic step per the store's single-Task transaction scope.
func (h JobBoardHandler) AcceptBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	postingID, ok := parseUUIDParam(w, "job posting", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req acceptBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.ValidationError("invalid request body", err, nil).Render(w)
		return
	}

	posting, err := h.Models.JobPostings.Get(ctx, postingID, h.Models.DBConnectionPool)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("job posting %s not found", postingID), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "loading job posting", err).Render(w)
		return
	}

	if !strings.EqualFold(req.CallerWallet, posting.CreatorWallet) {
		httperror.AuthorizationError("only the job's creator may accept a bid", nil).Render(w)
		return
	}

	bid, err := h.Models.Bids.Get(ctx, req.BidID, h.Models.DBConnectionPool)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("bid %s not found", req.BidID), err).Render(w)
			return
		}
		httperror.InternalError(ctx, "loading bid", err).Render(w)
		return
	}

	task, err := h.Models.Tasks.Get(ctx, posting.TaskID, h.Models.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "loading task for job posting", err).Render(w)
		return
	}

	// Check eligibility before the bid's compare-and-set: otherwise a
	// premature accept on a task that isn't open/held yet could mark the
	// bid accepted and then fail the Task transition below, stranding an
	// accepted bid on a posting that never moves past open.
	if task.Status != data.TaskStatusOpen || task.EscrowStatus != data.EscrowStatusHeld {
		renderTransitionError(ctx, w, &statemachine.InvalidTransitionError{
			Event: "AcceptBid", CurrentStatus: task.Status, CurrentEscrow: task.EscrowStatus,
		})
		return
	}

	if _, err := h.Models.Bids.MarkAccepted(ctx, h.Models.DBConnectionPool, bid.ID); err != nil {
		if errors.Is(err, data.ErrAlreadyAccepted) {
			httperror.Conflict("a bid is already accepted for this job", err).Render(w)
			return
		}
		httperror.InternalError(ctx, "marking bid accepted", err).Render(w)
		return
	}

	updated, err := h.Models.Tasks.UpdateTransactional(ctx, posting.TaskID, func(t *data.Task) error {
		_, smErr := statemachine.AcceptBid(t, bid.WorkerID)
		return smErr
	})
	if err != nil {
		renderTransitionError(ctx, w, err)
		return
	}

	if err := h.Models.JobPostings.UpdateStatus(ctx, h.Models.DBConnectionPool, posting.ID, data.JobPostingStatusAssigned); err != nil {
		httperror.InternalError(ctx, "updating job posting status", err).Render(w)
		return
	}

	if _, err := h.Models.Activities.Append(ctx, h.Models.DBConnectionPool, data.ActivityInsert{
		ActorID: req.CallerWallet,
		TaskID:  posting.TaskID,
		Action:  data.ActionBidAccepted,
	}); err != nil {
		httperror.InternalError(ctx, "recording bid accepted activity", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, updated, httpjson.JSON)
}

func validateJobFields(title, description, budget string) error {
	if err := utils.ValidateStringLength(title, "title", maxTitleLength); err != nil {
		return err
	}
	if err := utils.ValidateNoHTML(title); err != nil {
		return err
	}
	if description != "" {
		if err := utils.ValidateStringLength(description, "description", maxDescriptionLength); err != nil {
			return err
		}
		if err := utils.ValidateNoHTML(description); err != nil {
			return err
		}
	}
	return utils.ValidateAmount(budget)
}
