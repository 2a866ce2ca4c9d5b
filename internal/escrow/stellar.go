package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/txnbuild"

	"github.com/agentmarket/coordinator/internal/logging"
)

// StellarAdapter is the custodial on-chain Adapter: the coordinator holds
// the signing key for a single distribution account and submits a Stellar
// payment per Release/Refund, memoing the transaction with the Task's
// fixed-width backend key (escrow.TaskKey) for auditability.
type StellarAdapter struct {
	horizonClient      horizonclient.ClientInterface
	signer             *keypair.Full
	baseFee            int64
	networkPassphrase  string

	mu       sync.Mutex
	deposits map[string]*stellarDeposit
}

type stellarDeposit struct {
	depositor string
	amount    string
	released  bool
	refunded  bool
}

type StellarAdapterOptions struct {
	HorizonClient     horizonclient.ClientInterface
	Signer            *keypair.Full
	BaseFee           int64
	NetworkPassphrase string
}

func NewStellarAdapter(opts StellarAdapterOptions) *StellarAdapter {
	baseFee := opts.BaseFee
	if baseFee == 0 {
		baseFee = txnbuild.MinBaseFee
	}
	return &StellarAdapter{
		horizonClient:     opts.HorizonClient,
		signer:            opts.Signer,
		baseFee:           baseFee,
		networkPassphrase: opts.NetworkPassphrase,
		deposits:          make(map[string]*stellarDeposit),
	}
}

// Deposit is not meaningful for the custodial Stellar variant: the
// coordinator's distribution account already holds the funds that back
// every task, so there is nothing to deposit on a per-task basis. Callers
// of the custodial variant should confirm funding out of band and then
// call VerifyDeposit, which this adapter treats identically to Deposit.
func (s *StellarAdapter) Deposit(ctx context.Context, taskID, amount, depositor string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deposits[taskID]; ok {
		return nil, ErrAlreadyDeposited
	}
	s.deposits[taskID] = &stellarDeposit{depositor: depositor, amount: amount}
	return &Receipt{Reference: TaskKeyHex(taskID)}, nil
}

func (s *StellarAdapter) VerifyDeposit(ctx context.Context, taskID, externalRef, expectedDepositor, expectedAmount string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deposit, ok := s.deposits[taskID]
	if !ok {
		s.deposits[taskID] = &stellarDeposit{depositor: expectedDepositor, amount: expectedAmount}
		return &Receipt{Reference: externalRef}, nil
	}
	if deposit.depositor != expectedDepositor {
		return nil, ErrDepositorMismatch
	}
	if deposit.amount != expectedAmount {
		return nil, ErrAmountMismatch
	}
	return &Receipt{Reference: externalRef}, nil
}

func (s *StellarAdapter) Release(ctx context.Context, taskID, recipient string) (*Receipt, error) {
	return s.settle(ctx, taskID, recipient, false)
}

func (s *StellarAdapter) Refund(ctx context.Context, taskID string) (*Receipt, error) {
	s.mu.Lock()
	deposit, ok := s.deposits[taskID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotHeld
	}
	return s.settle(ctx, taskID, deposit.depositor, true)
}

func (s *StellarAdapter) settle(ctx context.Context, taskID, recipient string, refund bool) (*Receipt, error) {
	s.mu.Lock()
	deposit, ok := s.deposits[taskID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotHeld
	}
	if deposit.released || deposit.refunded {
		s.mu.Unlock()
		return nil, ErrAlreadySettled
	}
	s.mu.Unlock()

	sourceAccount, err := s.horizonClient.AccountDetail(horizonclient.AccountRequest{AccountID: s.signer.Address()})
	if err != nil {
		return nil, fmt.Errorf("%w: loading distribution account: %w", ErrBackendUnavailable, err)
	}

	memo, err := txnbuild.NewMemoHash(TaskKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("building task memo: %w", err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: recipient,
				Amount:      deposit.amount,
				Asset:       txnbuild.NativeAsset{},
			},
		},
		BaseFee:       s.baseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(30)},
		Memo:          memo,
	})
	if err != nil {
		return nil, fmt.Errorf("building settlement transaction: %w", err)
	}

	tx, err = tx.Sign(s.networkPassphrase, s.signer)
	if err != nil {
		return nil, fmt.Errorf("signing settlement transaction: %w", err)
	}

	resp, err := s.horizonClient.SubmitTransaction(tx)
	if err != nil {
		var hErr *horizonclient.Error
		if errors.As(err, &hErr) {
			logging.Ctx(ctx).Warnf("stellar escrow settlement for task %s rejected: %s", taskID, hErr.Problem.Detail)
		}
		return nil, fmt.Errorf("%w: submitting settlement transaction: %w", ErrBackendUnavailable, err)
	}

	s.mu.Lock()
	if refund {
		deposit.refunded = true
	} else {
		deposit.released = true
	}
	s.mu.Unlock()

	return &Receipt{
		Reference: resp.Hash,
		Sequence:  uint64(resp.Ledger),
		URL:       fmt.Sprintf("https://stellar.expert/explorer/public/tx/%s", resp.Hash),
	}, nil
}

func (s *StellarAdapter) Query(ctx context.Context, taskID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deposit, ok := s.deposits[taskID]
	if !ok {
		return nil, ErrNotFound
	}
	return &State{Depositor: deposit.depositor, Amount: deposit.amount, Released: deposit.released, Refunded: deposit.refunded}, nil
}

var _ Adapter = (*StellarAdapter)(nil)
