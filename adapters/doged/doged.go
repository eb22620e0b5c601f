// Package doged adapts a Dogecoin HTLC wallet daemon to the swap engine's
// ChainAdapter interface. The daemon exposes a bitcoind-style JSON-RPC
// surface over HTTP with basic auth.
package doged

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"swapd/native/swap"
)

const maxResponseBytes = 1 << 20

// Config describes the daemon connection.
type Config struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a thin JSON-RPC client for the daemon. Safe for concurrent use.
type Client struct {
	url      string
	username string
	password string
	http     *http.Client
}

// New constructs a client. A zero timeout defaults to 15 seconds; callers
// still bound individual calls with their context.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("doged: rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      time.Now().UnixNano(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("doged: marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("doged: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("doged: %s: %w", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("doged: read %s response: %w", method, err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("doged: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out != nil {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("doged: decode %s result: %w", method, err)
		}
	}
	return nil
}

type verifyResult struct {
	Found  bool   `json:"found"`
	Amount string `json:"amount"`
	Expiry int64  `json:"expiry"`
	Spent  bool   `json:"spent"`
}

type submitResult struct {
	TxID string `json:"txid"`
}

// VerifyDeposit implements swap.ChainAdapter. The daemon scans its watched
// scripts for an HTLC output addressed by the swap id and hashlock.
func (c *Client) VerifyDeposit(ctx context.Context, swapID, hashlock [32]byte, expiry int64, amount *big.Int) (bool, error) {
	var result verifyResult
	params := []any{
		hex.EncodeToString(swapID[:]),
		hex.EncodeToString(hashlock[:]),
	}
	if err := c.call(ctx, "verifyhtlc", params, &result); err != nil {
		return false, err
	}
	if !result.Found || result.Spent {
		return false, nil
	}
	if result.Expiry != expiry {
		return false, nil
	}
	got, ok := new(big.Int).SetString(result.Amount, 10)
	if !ok {
		return false, fmt.Errorf("doged: malformed amount %q in verifyhtlc result", result.Amount)
	}
	if got.Cmp(amount) != 0 {
		return false, nil
	}
	return true, nil
}

// SubmitClaim implements swap.ChainAdapter by revealing the preimage so the
// daemon can spend the HTLC output.
func (c *Client) SubmitClaim(ctx context.Context, swapID [32]byte, secret []byte) (*swap.Receipt, error) {
	var result submitResult
	params := []any{
		hex.EncodeToString(swapID[:]),
		hex.EncodeToString(secret),
	}
	if err := c.call(ctx, "claimhtlc", params, &result); err != nil {
		return nil, err
	}
	return &swap.Receipt{
		TxHash:      result.TxID,
		Chain:       swap.ChainDoge,
		SubmittedAt: time.Now().Unix(),
	}, nil
}

// SubmitRefund implements swap.ChainAdapter by sweeping expired HTLC outputs
// back to the depositor's change address.
func (c *Client) SubmitRefund(ctx context.Context, swapID [32]byte) (*swap.Receipt, error) {
	var result submitResult
	params := []any{hex.EncodeToString(swapID[:])}
	if err := c.call(ctx, "refundhtlc", params, &result); err != nil {
		return nil, err
	}
	return &swap.Receipt{
		TxHash:      result.TxID,
		Chain:       swap.ChainDoge,
		SubmittedAt: time.Now().Unix(),
	}, nil
}

var _ swap.ChainAdapter = (*Client)(nil)
