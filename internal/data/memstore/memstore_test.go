package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentmarket/coordinator/internal/data"
)

func Test_AgentStore_Upsert_DefaultsReputationTo50(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	agent, err := models.Agents.Upsert(ctx, data.AgentUpsert{Handle: "alice", Wallet: "0xWALLET"})
	require.NoError(t, err)
	assert.Equal(t, data.DefaultReputation, agent.Reputation)
	assert.Equal(t, 50, agent.Reputation)
}

func Test_AgentStore_Upsert_IsIdempotentByHandle(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	first, err := models.Agents.Upsert(ctx, data.AgentUpsert{Handle: "alice", Wallet: "0xone"})
	require.NoError(t, err)

	second, err := models.Agents.Upsert(ctx, data.AgentUpsert{Handle: "ALICE", Wallet: "0xtwo"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Wallet, second.Wallet, "the second upsert must not overwrite the existing wallet")
}

func Test_AgentStore_UpdateReputation_ClampsToZeroAndHundred(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	agent, err := models.Agents.Upsert(ctx, data.AgentUpsert{Handle: "bob", Wallet: "0xbob"})
	require.NoError(t, err)
	require.Equal(t, 50, agent.Reputation)

	// Drive reputation down past zero: -5 per failure, starting at 50.
	for i := 0; i < 20; i++ {
		agent, err = models.Agents.UpdateReputation(ctx, nil, agent.ID, false)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, agent.Reputation, "reputation must clamp at 0, not go negative")
	assert.Equal(t, 20, agent.TasksFailed)

	// Drive it back up past 100: +2 per success.
	for i := 0; i < 60; i++ {
		agent, err = models.Agents.UpdateReputation(ctx, nil, agent.ID, true)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, agent.Reputation, "reputation must clamp at 100, not exceed it")
	assert.Equal(t, 60, agent.TasksCompleted)
}

func Test_TaskStore_UpdateTransactional(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	task, err := models.Tasks.Create(ctx, nil, data.TaskInsert{
		Title:         "Summarize",
		Budget:        "100",
		CreatorWallet: "0xAAA",
	})
	require.NoError(t, err)
	assert.Equal(t, data.TaskStatusOpen, task.Status)
	assert.Equal(t, 1, task.Version)

	updated, err := models.Tasks.UpdateTransactional(ctx, task.ID, func(t *data.Task) error {
		t.Status = data.TaskStatusInProgress
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, data.TaskStatusInProgress, updated.Status)
	assert.Equal(t, 2, updated.Version, "UpdateTransactional must bump the version on every successful write")

	t.Run("a failing fn aborts without persisting", func(t *testing.T) {
		_, err := models.Tasks.UpdateTransactional(ctx, task.ID, func(t *data.Task) error {
			t.Status = data.TaskStatusCompleted
			return assert.AnError
		})
		require.Error(t, err)

		reloaded, err := models.Tasks.Get(ctx, task.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, data.TaskStatusInProgress, reloaded.Status, "a failed transition must not mutate the stored task")
		assert.Equal(t, 2, reloaded.Version)
	})

	t.Run("unknown id returns ErrRecordNotFound", func(t *testing.T) {
		_, err := models.Tasks.UpdateTransactional(ctx, "does-not-exist", func(t *data.Task) error { return nil })
		assert.ErrorIs(t, err, data.ErrRecordNotFound)
	})
}

func Test_TaskStore_ListPendingRecovery(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	inSettlement, err := models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "a", Budget: "1", CreatorWallet: "0xa"})
	require.NoError(t, err)
	_, err = models.Tasks.UpdateTransactional(ctx, inSettlement.ID, func(t *data.Task) error {
		t.Status = data.TaskStatusSettlement
		return nil
	})
	require.NoError(t, err)

	pendingDeposit, err := models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "b", Budget: "1", CreatorWallet: "0xb"})
	require.NoError(t, err)
	_, err = models.Tasks.UpdateTransactional(ctx, pendingDeposit.ID, func(t *data.Task) error {
		t.EscrowStatus = data.EscrowStatusPending
		return nil
	})
	require.NoError(t, err)

	_, err = models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "c", Budget: "1", CreatorWallet: "0xc"})
	require.NoError(t, err)

	pending, err := models.Tasks.ListPendingRecovery(ctx, nil)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, task := range pending {
		ids[task.ID] = true
	}
	assert.True(t, ids[inSettlement.ID])
	assert.True(t, ids[pendingDeposit.ID])
	assert.Len(t, pending, 2)
}

func Test_BidStore_MarkAccepted_EnforcesOneAcceptedBidPerJob(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	task, err := models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "a", Budget: "1", CreatorWallet: "0xa"})
	require.NoError(t, err)
	posting, err := models.JobPostings.Create(ctx, nil, data.JobPostingInsert{TaskID: task.ID, Title: "a"})
	require.NoError(t, err)

	bidA, err := models.Bids.Append(ctx, nil, data.BidInsert{JobID: posting.ID, WorkerID: "w1"})
	require.NoError(t, err)
	bidB, err := models.Bids.Append(ctx, nil, data.BidInsert{JobID: posting.ID, WorkerID: "w2"})
	require.NoError(t, err)

	accepted, err := models.Bids.MarkAccepted(ctx, nil, bidA.ID)
	require.NoError(t, err)
	assert.True(t, accepted.Accepted)

	_, err = models.Bids.MarkAccepted(ctx, nil, bidB.ID)
	assert.ErrorIs(t, err, data.ErrAlreadyAccepted)
}

func Test_JobPostingStore_UpdateStatus(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	task, err := models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "a", Budget: "1", CreatorWallet: "0xa"})
	require.NoError(t, err)
	posting, err := models.JobPostings.Create(ctx, nil, data.JobPostingInsert{TaskID: task.ID, Title: "a"})
	require.NoError(t, err)
	assert.Equal(t, data.JobPostingStatusOpen, posting.Status)

	err = models.JobPostings.UpdateStatus(ctx, nil, posting.ID, data.JobPostingStatusAssigned)
	require.NoError(t, err)

	reloaded, err := models.JobPostings.Get(ctx, posting.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, data.JobPostingStatusAssigned, reloaded.Status)

	err = models.JobPostings.UpdateStatus(ctx, nil, "does-not-exist", data.JobPostingStatusClosed)
	assert.ErrorIs(t, err, data.ErrRecordNotFound)
}

func Test_ActivityStore_ListByTasks_NewestFirstAndLimited(t *testing.T) {
	models := NewModels()
	ctx := context.Background()

	task, err := models.Tasks.Create(ctx, nil, data.TaskInsert{Title: "a", Budget: "1", CreatorWallet: "0xa"})
	require.NoError(t, err)

	for _, action := range []string{data.ActionTaskCreated, data.ActionEscrowHeld, data.ActionBidAccepted} {
		_, err := models.Activities.Append(ctx, nil, data.ActivityInsert{ActorID: data.SystemActor, TaskID: task.ID, Action: action})
		require.NoError(t, err)
	}

	activities, err := models.Activities.ListByTasks(ctx, nil, []string{task.ID}, 2)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, data.ActionBidAccepted, activities[0].Action, "ListByTasks must return newest first")
	assert.Equal(t, data.ActionEscrowHeld, activities[1].Action)

	ordered, err := models.Activities.ListByTask(ctx, nil, task.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, data.ActionTaskCreated, ordered[0].Action, "ListByTask must return oldest first")
}
