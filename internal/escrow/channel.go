package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
	"github.com/agentmarket/coordinator/internal/serve/httpclient"
)

// ChannelAdapter talks to an off-chain settlement service over HTTP — the
// "optional alternative settlement backend behind the same interface" the
// purpose section allows in place of an on-chain contract.
type ChannelAdapter struct {
	BaseURL        string
	APIKey         string
	httpClient     httpclient.HttpClientInterface
	monitorService monitor.MonitorServiceInterface
	retryAttempts  uint
}

type ChannelAdapterOptions struct {
	BaseURL        string
	APIKey         string
	MonitorService monitor.MonitorServiceInterface
	RetryAttempts  uint
}

func NewChannelAdapter(opts ChannelAdapterOptions) *ChannelAdapter {
	attempts := opts.RetryAttempts
	if attempts == 0 {
		attempts = 5
	}
	return &ChannelAdapter{
		BaseURL:        opts.BaseURL,
		APIKey:         opts.APIKey,
		httpClient:     httpclient.DefaultClient(),
		monitorService: opts.MonitorService,
		retryAttempts:  attempts,
	}
}

type channelTransferRequest struct {
	IdempotencyKey string `json:"idempotencyKey"`
	TaskID         string `json:"taskId"`
	Amount         string `json:"amount,omitempty"`
	Depositor      string `json:"depositor,omitempty"`
	Recipient      string `json:"recipient,omitempty"`
	ExternalRef    string `json:"externalRef,omitempty"`
}

type channelTransferResponse struct {
	Reference string `json:"reference"`
	Sequence  uint64 `json:"sequence"`
	URL       string `json:"url"`
}

type channelQueryResponse struct {
	Depositor string `json:"depositor"`
	Amount    string `json:"amount"`
	Released  bool   `json:"released"`
	Refunded  bool   `json:"refunded"`
}

func (c *ChannelAdapter) Deposit(ctx context.Context, taskID, amount, depositor string) (*Receipt, error) {
	var resp channelTransferResponse
	err := c.post(ctx, "deposit", channelTransferRequest{
		IdempotencyKey: TaskKeyHex(taskID),
		TaskID:         taskID,
		Amount:         amount,
		Depositor:      depositor,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Receipt{Reference: resp.Reference, Sequence: resp.Sequence, URL: resp.URL}, nil
}

func (c *ChannelAdapter) VerifyDeposit(ctx context.Context, taskID, externalRef, expectedDepositor, expectedAmount string) (*Receipt, error) {
	var resp channelTransferResponse
	err := c.post(ctx, "verify-deposit", channelTransferRequest{
		IdempotencyKey: TaskKeyHex(taskID),
		TaskID:         taskID,
		ExternalRef:    externalRef,
		Depositor:      expectedDepositor,
		Amount:         expectedAmount,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Receipt{Reference: resp.Reference, Sequence: resp.Sequence, URL: resp.URL}, nil
}

func (c *ChannelAdapter) Release(ctx context.Context, taskID, recipient string) (*Receipt, error) {
	var resp channelTransferResponse
	err := c.post(ctx, "release", channelTransferRequest{
		IdempotencyKey: TaskKeyHex(taskID) + ":release",
		TaskID:         taskID,
		Recipient:      recipient,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Receipt{Reference: resp.Reference, Sequence: resp.Sequence, URL: resp.URL}, nil
}

func (c *ChannelAdapter) Refund(ctx context.Context, taskID string) (*Receipt, error) {
	var resp channelTransferResponse
	err := c.post(ctx, "refund", channelTransferRequest{
		IdempotencyKey: TaskKeyHex(taskID) + ":refund",
		TaskID:         taskID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Receipt{Reference: resp.Reference, Sequence: resp.Sequence, URL: resp.URL}, nil
}

func (c *ChannelAdapter) Query(ctx context.Context, taskID string) (*State, error) {
	u, err := url.JoinPath(c.BaseURL, "tasks", taskID)
	if err != nil {
		return nil, fmt.Errorf("building query path: %w", err)
	}

	var resp channelQueryResponse
	if err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return &State{Depositor: resp.Depositor, Amount: resp.Amount, Released: resp.Released, Refunded: resp.Refunded}, nil
}

func (c *ChannelAdapter) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	u, err := url.JoinPath(c.BaseURL, path)
	if err != nil {
		return fmt.Errorf("building path %s: %w", path, err)
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, u, bodyBytes, out)
}

// do performs the HTTP round-trip with exponential backoff and jitter on
// BackendUnavailable-classified failures, per §4.6's retry policy.
func (c *ChannelAdapter) do(ctx context.Context, method, u string, bodyBytes []byte, out interface{}) error {
	var resp *http.Response
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(bodyBytes))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			if c.APIKey != "" {
				req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
			}
			if bodyBytes != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err = c.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(200*time.Millisecond),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrBackendUnavailable) }),
		retry.OnRetry(func(n uint, err error) {
			logging.Ctx(ctx).Warnf("escrow channel request to %s retry %d: %s", u, n, err)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return ErrAlreadyDeposited
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("escrow channel request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding escrow channel response: %w", err)
		}
	}
	return nil
}

var _ Adapter = (*ChannelAdapter)(nil)
