// Package statemachine implements the pure transition relation over a Task:
// (Task, Event) -> (Task', []SideEffect). It never touches the store,
// escrow, or identity adapters directly — callers apply the returned Task
// inside a transactional update and hand the side effects to the
// settlement dispatcher.
package statemachine

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentmarket/coordinator/internal/data"
)

// ErrInvalidTransition is returned whenever the current (status, escrowStatus)
// does not admit the attempted event.
var ErrInvalidTransition = errors.New("invalid transition")

// InvalidTransitionError carries the task's current status so handlers can
// report it back to the caller per the coordinator's error taxonomy.
type InvalidTransitionError struct {
	Event          string
	CurrentStatus  data.TaskStatus
	CurrentEscrow  data.EscrowStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %q from status=%s escrowStatus=%s", e.Event, e.CurrentStatus, e.CurrentEscrow)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// SideEffectKind names the actions the dispatcher knows how to execute.
type SideEffectKind string

const (
	SideEffectEnqueueSettle           SideEffectKind = "settle"
	SideEffectEnqueueRefund           SideEffectKind = "refund"
	SideEffectEnqueueUpdateReputation SideEffectKind = "update_reputation"
)

// SideEffect is an instruction the state machine emits alongside a
// transition; the caller is responsible for handing it to the settlement
// dispatcher.
type SideEffect struct {
	Kind     SideEffectKind
	TaskID   string
	WorkerID string
	Success  bool
}

// DepositConfirmed moves a task from open/pending to open/held once the
// escrow deposit has been recorded or verified.
func DepositConfirmed(task *data.Task, receiptReference string) ([]SideEffect, error) {
	if task.Status != data.TaskStatusOpen || task.EscrowStatus != data.EscrowStatusPending {
		return nil, invalidTransition("DepositConfirmed", task)
	}
	task.EscrowStatus = data.EscrowStatusHeld
	if receiptReference != "" {
		task.SettlementReference = &receiptReference
	}
	return nil, nil
}

// AcceptBid moves a task from open/held to in-progress/held, recording the
// winning worker. The caller has already marked the bid itself accepted
// (via Bids.MarkAccepted, which is the actual compare-and-set).
func AcceptBid(task *data.Task, workerID string) ([]SideEffect, error) {
	if task.Status != data.TaskStatusOpen || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("AcceptBid", task)
	}
	task.Status = data.TaskStatusInProgress
	task.AssignedAgentIDs = append(task.AssignedAgentIDs, workerID)
	return nil, nil
}

// SubmitWork moves a task from in-progress/held to settlement/held,
// appending the worker's result and emitting a Settle side effect.
func SubmitWork(task *data.Task, workerID string, result json.RawMessage, now time.Time) ([]SideEffect, error) {
	if task.Status != data.TaskStatusInProgress || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("SubmitWork", task)
	}
	task.Status = data.TaskStatusSettlement
	task.WorkResults = append(task.WorkResults, data.WorkResult{
		WorkerID:  workerID,
		Result:    result,
		Timestamp: now,
	})
	return []SideEffect{{Kind: SideEffectEnqueueSettle, TaskID: task.ID, WorkerID: workerID}}, nil
}

// SettlementSucceeded moves a task from settlement/held to completed/released,
// storing the settlement receipt and scheduling a reputation update.
func SettlementSucceeded(task *data.Task, settlementReference string, settledAt time.Time, workerID string) ([]SideEffect, error) {
	if task.Status != data.TaskStatusSettlement || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("SettlementSucceeded", task)
	}
	task.Status = data.TaskStatusCompleted
	task.EscrowStatus = data.EscrowStatusReleased
	task.SettlementReference = &settlementReference
	task.SettlementAt = &settledAt
	return []SideEffect{{Kind: SideEffectEnqueueUpdateReputation, TaskID: task.ID, WorkerID: workerID, Success: true}}, nil
}

// SettlementFailed moves a task from settlement/held to review/held. No
// automatic transition follows; the task awaits manual action (ForceClose).
func SettlementFailed(task *data.Task) ([]SideEffect, error) {
	if task.Status != data.TaskStatusSettlement || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("SettlementFailed", task)
	}
	task.Status = data.TaskStatusReview
	return nil, nil
}

// RefundRequested moves a task from open-or-in-progress/held to
// reversed/refunded. callerWallet must equal task.CreatorWallet
// (case-insensitive); callers should check that before invoking this, since
// the state machine itself does not know about authorization — but it still
// enforces it defensively as the final gate before the transition commits.
func RefundRequested(task *data.Task, callerWallet string) ([]SideEffect, error) {
	if (task.Status != data.TaskStatusOpen && task.Status != data.TaskStatusInProgress) || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("RefundRequested", task)
	}
	if !sameWallet(callerWallet, task.CreatorWallet) {
		return nil, invalidTransition("RefundRequested", task)
	}
	task.Status = data.TaskStatusReversed
	task.EscrowStatus = data.EscrowStatusRefunded
	return []SideEffect{{Kind: SideEffectEnqueueRefund, TaskID: task.ID}}, nil
}

// ForceClose is an admin-only transition from review/held to
// reversed/refunded.
func ForceClose(task *data.Task) ([]SideEffect, error) {
	if task.Status != data.TaskStatusReview || task.EscrowStatus != data.EscrowStatusHeld {
		return nil, invalidTransition("ForceClose", task)
	}
	task.Status = data.TaskStatusReversed
	task.EscrowStatus = data.EscrowStatusRefunded
	return []SideEffect{{Kind: SideEffectEnqueueRefund, TaskID: task.ID}}, nil
}

func invalidTransition(event string, task *data.Task) error {
	return &InvalidTransitionError{Event: event, CurrentStatus: task.Status, CurrentEscrow: task.EscrowStatus}
}

func sameWallet(a, b string) bool {
	return canonicalizeWallet(a) == canonicalizeWallet(b)
}

// canonicalizeWallet lowercases a wallet address for comparison, per the
// "treat wallets as opaque values canonicalized to lowercase hex" rule.
func canonicalizeWallet(wallet string) string {
	out := make([]byte, len(wallet))
	for i := 0; i < len(wallet); i++ {
		c := wallet[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
