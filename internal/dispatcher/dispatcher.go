// Package dispatcher implements the SettlementDispatcher: a background
// worker that consumes (taskId, action) items, serializes at most one
// in-flight action per task, and bounds total concurrency across distinct
// tasks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/escrow"
	"github.com/agentmarket/coordinator/internal/identity"
	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/statemachine"
)

type ActionKind string

const (
	ActionSettle           ActionKind = "settle"
	ActionRefund           ActionKind = "refund"
	ActionUpdateReputation ActionKind = "update_reputation"
)

// Action is one unit of work the dispatcher will run: at most one action
// per taskId may be in flight at a time, and actions for the same taskId
// run in the order they were enqueued.
type Action struct {
	Kind     ActionKind
	TaskID   string
	WorkerID string
	Success  bool
}

const (
	DefaultMaxConcurrentSettlements = 8
	DefaultRetryMax                 = 5
	DefaultRetryBaseDelay           = 500 * time.Millisecond
)

// Options configures a Dispatcher.
type Options struct {
	Models                   *data.Models
	EscrowAdapter            escrow.Adapter
	IdentityAdapter          identity.Adapter
	MaxConcurrentSettlements int
	RetryMax                 uint
	RetryBaseDelay           time.Duration
}

// Dispatcher is the SettlementDispatcher. Zero value is not usable; build
// one with New.
type Dispatcher struct {
	models          *data.Models
	escrowAdapter   escrow.Adapter
	identityAdapter identity.Adapter

	retryMax       uint
	retryBaseDelay time.Duration

	sem chan struct{}

	mu       sync.Mutex
	pending  map[string][]Action // taskId -> FIFO queue of pending actions
	active   map[string]bool     // taskId -> a goroutine is currently draining its queue
	identity *keyedMutex         // per-worker (agent id) serialization for reputation updates

	wg sync.WaitGroup
}

func New(opts Options) *Dispatcher {
	concurrency := opts.MaxConcurrentSettlements
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrentSettlements
	}
	retryMax := opts.RetryMax
	if retryMax == 0 {
		retryMax = DefaultRetryMax
	}
	retryBaseDelay := opts.RetryBaseDelay
	if retryBaseDelay == 0 {
		retryBaseDelay = DefaultRetryBaseDelay
	}

	return &Dispatcher{
		models:          opts.Models,
		escrowAdapter:   opts.EscrowAdapter,
		identityAdapter: opts.IdentityAdapter,
		retryMax:        retryMax,
		retryBaseDelay:  retryBaseDelay,
		sem:             make(chan struct{}, concurrency),
		pending:         make(map[string][]Action),
		active:          make(map[string]bool),
		identity:        newKeyedMutex(),
	}
}

// Enqueue appends action to its task's FIFO queue and, if no goroutine is
// currently draining that queue, starts one. Enqueue never blocks on I/O;
// actual execution is bounded by the shared concurrency semaphore.
func (d *Dispatcher) Enqueue(action Action) {
	d.mu.Lock()
	d.pending[action.TaskID] = append(d.pending[action.TaskID], action)
	alreadyActive := d.active[action.TaskID]
	d.active[action.TaskID] = true
	d.mu.Unlock()

	if !alreadyActive {
		d.wg.Add(1)
		go d.drain(action.TaskID)
	}
}

// drain runs every pending action for taskID, one at a time, until the
// queue is empty, then marks the task inactive. This is the mechanism
// giving "at most one in-flight action per taskId" and "FIFO among actions
// for the same taskId" without a global lock: a single goroutine per
// active task, draining a private FIFO slice.
func (d *Dispatcher) drain(taskID string) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.pending[taskID]
		if len(queue) == 0 {
			d.active[taskID] = false
			delete(d.pending, taskID)
			d.mu.Unlock()
			return
		}
		action := queue[0]
		d.pending[taskID] = queue[1:]
		d.mu.Unlock()

		d.sem <- struct{}{}
		d.execute(context.Background(), action)
		<-d.sem
	}
}

// Wait blocks until every currently-active task queue has drained. Intended
// for tests and graceful shutdown; new Enqueue calls after Wait returns may
// start fresh goroutines.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) execute(ctx context.Context, action Action) {
	var err error
	switch action.Kind {
	case ActionSettle:
		err = d.settle(ctx, action.TaskID)
	case ActionRefund:
		err = d.refund(ctx, action.TaskID)
	case ActionUpdateReputation:
		err = d.updateReputation(ctx, action.WorkerID, action.Success)
	default:
		err = fmt.Errorf("unknown dispatcher action kind %q", action.Kind)
	}
	if err != nil {
		logging.Ctx(ctx).Errorf("dispatcher action %s for task %s failed: %s", action.Kind, action.TaskID, err)
	}
}

// settle calls EscrowAdapter.Release with retry on BackendUnavailable, then
// transactionally emits SettlementSucceeded or SettlementFailed and
// schedules a reputation update on success.
func (d *Dispatcher) settle(ctx context.Context, taskID string) error {
	task, err := d.models.Tasks.Get(ctx, taskID, d.models.DBConnectionPool)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}

	recipient, err := d.settlementRecipient(ctx, task)
	if err != nil {
		return fmt.Errorf("resolving settlement recipient for task %s: %w", taskID, err)
	}

	receipt, err := d.retryEscrow(ctx, func() (*escrow.Receipt, error) {
		return d.escrowAdapter.Release(ctx, taskID, recipient)
	})

	if err != nil {
		if markErr := d.markSettlementFailed(ctx, taskID); markErr != nil {
			return fmt.Errorf("settlement release failed (%w) and marking failed also failed: %w", err, markErr)
		}
		return fmt.Errorf("releasing escrow for task %s: %w", taskID, err)
	}

	now := timeNow()
	var workerID string
	if len(task.AssignedAgentIDs) > 0 {
		workerID = task.AssignedAgentIDs[len(task.AssignedAgentIDs)-1]
	}

	updated, err := d.models.Tasks.UpdateTransactional(ctx, taskID, func(t *data.Task) error {
		_, smErr := statemachine.SettlementSucceeded(t, receipt.Reference, now, workerID)
		return smErr
	})
	if err != nil {
		return fmt.Errorf("emitting SettlementSucceeded for task %s: %w", taskID, err)
	}

	if _, err := d.models.Activities.Append(ctx, d.models.DBConnectionPool, data.ActivityInsert{
		ActorID: escrowActor(receipt),
		TaskID:  updated.ID,
		Action:  data.ActionPaymentSettled,
	}); err != nil {
		return fmt.Errorf("appending PAYMENT_SETTLED activity for task %s: %w", taskID, err)
	}

	if workerID != "" {
		d.Enqueue(Action{Kind: ActionUpdateReputation, TaskID: taskID, WorkerID: workerID, Success: true})
	}
	return nil
}

func (d *Dispatcher) markSettlementFailed(ctx context.Context, taskID string) error {
	if _, err := d.models.Tasks.UpdateTransactional(ctx, taskID, func(t *data.Task) error {
		_, smErr := statemachine.SettlementFailed(t)
		return smErr
	}); err != nil {
		return err
	}
	_, err := d.models.Activities.Append(ctx, d.models.DBConnectionPool, data.ActivityInsert{
		ActorID: data.SystemActor,
		TaskID:  taskID,
		Action:  data.ActionSettlementFailed,
	})
	return err
}

// refund calls EscrowAdapter.Refund with the same retry policy as settle and
// appends REFUND_PROCESSED on success. It does not transition the task.
func (d *Dispatcher) refund(ctx context.Context, taskID string) error {
	task, err := d.models.Tasks.Get(ctx, taskID, d.models.DBConnectionPool)
	if err != nil {
		return fmt.Errorf("loading task %s: %w", taskID, err)
	}

	receipt, err := d.retryEscrow(ctx, func() (*escrow.Receipt, error) {
		return d.escrowAdapter.Refund(ctx, taskID)
	})
	if err != nil {
		return fmt.Errorf("refunding escrow for task %s: %w", taskID, err)
	}

	if _, err := d.models.Activities.Append(ctx, d.models.DBConnectionPool, data.ActivityInsert{
		ActorID: escrowActor(receipt),
		TaskID:  task.ID,
		Action:  data.ActionRefundProcessed,
	}); err != nil {
		return fmt.Errorf("appending REFUND_PROCESSED activity for task %s: %w", taskID, err)
	}
	return nil
}

// updateReputation reads the current Agent, applies the success/failure
// delta, and propagates the new attributes to the identity adapter.
// Identity failures are logged and not retried indefinitely.
func (d *Dispatcher) updateReputation(ctx context.Context, workerID string, success bool) error {
	unlock := d.identity.Lock(workerID)
	defer unlock()

	agent, err := d.models.Agents.UpdateReputation(ctx, d.models.DBConnectionPool, workerID, success)
	if err != nil {
		return fmt.Errorf("updating reputation for agent %s: %w", workerID, err)
	}

	if !agent.IdentityRegistered {
		return nil
	}

	err = retry.Do(func() error {
		return d.identityAdapter.UpdateAttributes(ctx, agent.IdentityNode, map[string]string{
			identity.AttrReputation:     fmt.Sprintf("%d", agent.Reputation),
			identity.AttrTasksCompleted: fmt.Sprintf("%d", agent.TasksCompleted),
			identity.AttrTasksFailed:    fmt.Sprintf("%d", agent.TasksFailed),
		})
	}, retry.Attempts(3), retry.Context(ctx), retry.LastErrorOnly(true))
	if err != nil {
		logging.Ctx(ctx).Errorf("updating identity attributes for agent %s failed (non-fatal): %s", workerID, err)
	}
	return nil
}

// retryEscrow retries fn on ErrBackendUnavailable with exponential backoff
// and jitter, up to d.retryMax attempts; any other failure aborts
// immediately.
func (d *Dispatcher) retryEscrow(ctx context.Context, fn func() (*escrow.Receipt, error)) (*escrow.Receipt, error) {
	var receipt *escrow.Receipt
	err := retry.Do(
		func() error {
			r, err := fn()
			if err != nil {
				return err
			}
			receipt = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(d.retryMax),
		retry.Delay(d.retryBaseDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(func(err error) bool { return errors.Is(err, escrow.ErrBackendUnavailable) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (d *Dispatcher) settlementRecipient(ctx context.Context, task *data.Task) (string, error) {
	if len(task.AssignedAgentIDs) == 0 {
		return "", fmt.Errorf("task %s has no assigned worker", task.ID)
	}
	workerID := task.AssignedAgentIDs[len(task.AssignedAgentIDs)-1]
	agent, err := d.models.Agents.Get(ctx, workerID, d.models.DBConnectionPool)
	if err != nil {
		return "", fmt.Errorf("resolving worker %s wallet: %w", workerID, err)
	}
	return agent.Wallet, nil
}

func escrowActor(receipt *escrow.Receipt) string {
	if receipt == nil || receipt.Reference == "" {
		return data.SystemActor
	}
	return receipt.Reference
}

// RecoverStrandedTasks scans for tasks left mid-settlement or
// mid-deposit-confirmation after a crash and re-enqueues the appropriate
// action so that no task is stranded. Call once on startup before serving
// traffic.
func (d *Dispatcher) RecoverStrandedTasks(ctx context.Context) error {
	tasks, err := d.models.Tasks.ListPendingRecovery(ctx, d.models.DBConnectionPool)
	if err != nil {
		return fmt.Errorf("listing tasks pending recovery: %w", err)
	}

	for _, task := range tasks {
		if task.Status == data.TaskStatusSettlement {
			logging.Ctx(ctx).Infof("recovering stranded settlement for task %s", task.ID)
			d.Enqueue(Action{Kind: ActionSettle, TaskID: task.ID})
		}
		// EscrowStatus=pending tasks are awaiting a deposit the poster has
		// not yet confirmed; there is nothing to enqueue until
		// DepositConfirmed/VerifyDeposit arrives from an HTTP request.
	}
	return nil
}

func timeNow() time.Time {
	return time.Now().UTC()
}
