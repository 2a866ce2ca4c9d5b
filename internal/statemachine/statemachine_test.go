package statemachine

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmarket/coordinator/internal/data"
)

func newTask(status data.TaskStatus, escrow data.EscrowStatus) *data.Task {
	return &data.Task{
		ID:            "task-1",
		CreatorWallet: "0xcreator",
		Status:        status,
		EscrowStatus:  escrow,
	}
}

// Test_Transitions exercises the full transition table: for every event,
// every (status, escrowStatus) pair not explicitly allowed must be rejected
// with InvalidTransitionError, and each allowed pair must succeed (one
// pair per event, two for RefundRequested).
func Test_Transitions(t *testing.T) {
	allStatuses := []data.TaskStatus{
		data.TaskStatusOpen, data.TaskStatusInProgress, data.TaskStatusReview,
		data.TaskStatusSettlement, data.TaskStatusCompleted, data.TaskStatusReversed,
	}
	allEscrows := []data.EscrowStatus{
		data.EscrowStatusNone, data.EscrowStatusPending, data.EscrowStatusHeld,
		data.EscrowStatusReleased, data.EscrowStatusRefunded,
	}

	type transitionCase struct {
		event        string
		fromStatus   data.TaskStatus
		fromEscrow   data.EscrowStatus
		apply        func(task *data.Task) ([]SideEffect, error)
	}

	cases := []transitionCase{
		{
			event: "DepositConfirmed", fromStatus: data.TaskStatusOpen, fromEscrow: data.EscrowStatusPending,
			apply: func(task *data.Task) ([]SideEffect, error) { return DepositConfirmed(task, "receipt-1") },
		},
		{
			event: "AcceptBid", fromStatus: data.TaskStatusOpen, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) { return AcceptBid(task, "worker-1") },
		},
		{
			event: "SubmitWork", fromStatus: data.TaskStatusInProgress, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) {
				return SubmitWork(task, "worker-1", json.RawMessage(`{}`), time.Unix(0, 0).UTC())
			},
		},
		{
			event: "SettlementSucceeded", fromStatus: data.TaskStatusSettlement, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) {
				return SettlementSucceeded(task, "tx-1", time.Unix(0, 0).UTC(), "worker-1")
			},
		},
		{
			event: "SettlementFailed", fromStatus: data.TaskStatusSettlement, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) { return SettlementFailed(task) },
		},
		{
			event: "RefundRequested", fromStatus: data.TaskStatusOpen, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) { return RefundRequested(task, "0xCREATOR") },
		},
		{
			event: "ForceClose", fromStatus: data.TaskStatusReview, fromEscrow: data.EscrowStatusHeld,
			apply: func(task *data.Task) ([]SideEffect, error) { return ForceClose(task) },
		},
	}

	for _, tc := range cases {
		t.Run(tc.event, func(t *testing.T) {
			for _, status := range allStatuses {
				for _, escrow := range allEscrows {
					// RefundRequested additionally allows in-progress/held.
					allowed := status == tc.fromStatus && escrow == tc.fromEscrow
					if tc.event == "RefundRequested" && status == data.TaskStatusInProgress && escrow == data.EscrowStatusHeld {
						allowed = true
					}

					task := newTask(status, escrow)
					_, err := tc.apply(task)
					if allowed {
						assert.NoErrorf(t, err, "expected %s to succeed from status=%s escrow=%s", tc.event, status, escrow)
					} else {
						require.Errorf(t, err, "expected %s to fail from status=%s escrow=%s", tc.event, status, escrow)
						var invalidErr *InvalidTransitionError
						require.True(t, errors.As(err, &invalidErr))
						assert.Equal(t, status, invalidErr.CurrentStatus)
						assert.Equal(t, escrow, invalidErr.CurrentEscrow)
						assert.True(t, errors.Is(err, ErrInvalidTransition))
					}
				}
			}
		})
	}
}

func Test_AcceptBid_AppendsWorker(t *testing.T) {
	task := newTask(data.TaskStatusOpen, data.EscrowStatusHeld)
	effects, err := AcceptBid(task, "worker-7")
	require.NoError(t, err)
	assert.Empty(t, effects)
	assert.Equal(t, data.TaskStatusInProgress, task.Status)
	assert.Equal(t, data.UUIDArray{"worker-7"}, task.AssignedAgentIDs)
}

func Test_SubmitWork_EnqueuesSettle(t *testing.T) {
	task := newTask(data.TaskStatusInProgress, data.EscrowStatusHeld)
	task.ID = "task-42"
	now := time.Now().UTC()

	effects, err := SubmitWork(task, "worker-7", json.RawMessage(`{"ok":true}`), now)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, SideEffectEnqueueSettle, effects[0].Kind)
	assert.Equal(t, "task-42", effects[0].TaskID)
	assert.Equal(t, "worker-7", effects[0].WorkerID)
	require.Len(t, task.WorkResults, 1)
	assert.Equal(t, "worker-7", task.WorkResults[0].WorkerID)
}

func Test_SettlementSucceeded_EnqueuesReputationUpdate(t *testing.T) {
	task := newTask(data.TaskStatusSettlement, data.EscrowStatusHeld)
	task.ID = "task-9"
	settledAt := time.Now().UTC()

	effects, err := SettlementSucceeded(task, "stellar-tx-abc", settledAt, "worker-3")
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, SideEffectEnqueueUpdateReputation, effects[0].Kind)
	assert.True(t, effects[0].Success)
	assert.Equal(t, "worker-3", effects[0].WorkerID)

	assert.Equal(t, data.TaskStatusCompleted, task.Status)
	assert.Equal(t, data.EscrowStatusReleased, task.EscrowStatus)
	require.NotNil(t, task.SettlementReference)
	assert.Equal(t, "stellar-tx-abc", *task.SettlementReference)
	require.NotNil(t, task.SettlementAt)
}

func Test_RefundRequested_RequiresMatchingCreator(t *testing.T) {
	task := newTask(data.TaskStatusOpen, data.EscrowStatusHeld)
	task.CreatorWallet = "0xAbCdEf"

	_, err := RefundRequested(task, "0xdeadbeef")
	require.Error(t, err)
	var invalidErr *InvalidTransitionError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, data.TaskStatusOpen, task.Status, "rejected refund must not mutate the task")

	effects, err := RefundRequested(task, "0xabcdef")
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, SideEffectEnqueueRefund, effects[0].Kind)
	assert.Equal(t, data.TaskStatusReversed, task.Status)
	assert.Equal(t, data.EscrowStatusRefunded, task.EscrowStatus)
}

func Test_ForceClose_FromReview(t *testing.T) {
	task := newTask(data.TaskStatusReview, data.EscrowStatusHeld)
	effects, err := ForceClose(task)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, SideEffectEnqueueRefund, effects[0].Kind)
	assert.Equal(t, data.TaskStatusReversed, task.Status)
	assert.Equal(t, data.EscrowStatusRefunded, task.EscrowStatus)
}
