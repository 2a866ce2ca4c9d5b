package escrow

import (
	"context"
	"fmt"
	"sync"
)

type simulatedDeposit struct {
	depositor string
	amount    string
	released  bool
	refunded  bool
	sequence  uint64
}

// SimulatedAdapter is an in-memory Adapter producing deterministic receipts
// (the reference is TaskKeyHex plus a monotonically increasing sequence),
// used by tests and by ESCROW_BACKEND=simulated.
type SimulatedAdapter struct {
	mu       sync.Mutex
	deposits map[string]*simulatedDeposit
	nextSeq  uint64
}

func NewSimulatedAdapter() *SimulatedAdapter {
	return &SimulatedAdapter{deposits: make(map[string]*simulatedDeposit)}
}

func (s *SimulatedAdapter) receipt(taskID string) *Receipt {
	s.nextSeq++
	return &Receipt{
		Reference: TaskKeyHex(taskID),
		Sequence:  s.nextSeq,
		URL:       fmt.Sprintf("simulated://escrow/%s/%d", TaskKeyHex(taskID), s.nextSeq),
	}
}

func (s *SimulatedAdapter) Deposit(ctx context.Context, taskID, amount, depositor string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deposits[taskID]; ok {
		return nil, ErrAlreadyDeposited
	}
	s.deposits[taskID] = &simulatedDeposit{depositor: depositor, amount: amount}
	return s.receipt(taskID), nil
}

func (s *SimulatedAdapter) VerifyDeposit(ctx context.Context, taskID, externalRef, expectedDepositor, expectedAmount string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, ok := s.deposits[taskID]
	if !ok {
		// In the verifying variant, the poster's wallet deposited directly;
		// the first verification call is what records it.
		s.deposits[taskID] = &simulatedDeposit{depositor: expectedDepositor, amount: expectedAmount}
		return s.receipt(taskID), nil
	}
	if deposit.depositor != expectedDepositor {
		return nil, ErrDepositorMismatch
	}
	if deposit.amount != expectedAmount {
		return nil, ErrAmountMismatch
	}
	return s.receipt(taskID), nil
}

func (s *SimulatedAdapter) Release(ctx context.Context, taskID, recipient string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, ok := s.deposits[taskID]
	if !ok {
		return nil, ErrNotHeld
	}
	if deposit.released || deposit.refunded {
		return nil, ErrAlreadySettled
	}
	deposit.released = true
	return s.receipt(taskID), nil
}

func (s *SimulatedAdapter) Refund(ctx context.Context, taskID string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, ok := s.deposits[taskID]
	if !ok {
		return nil, ErrNotHeld
	}
	if deposit.released || deposit.refunded {
		return nil, ErrAlreadySettled
	}
	deposit.refunded = true
	return s.receipt(taskID), nil
}

func (s *SimulatedAdapter) Query(ctx context.Context, taskID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deposit, ok := s.deposits[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &State{
		Depositor: deposit.depositor,
		Amount:    deposit.amount,
		Released:  deposit.released,
		Refunded:  deposit.refunded,
	}, nil
}

var _ Adapter = (*SimulatedAdapter)(nil)
