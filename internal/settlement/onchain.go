package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// Config configures the JSON-RPC settlement client.
type Config struct {
	// Endpoint is the JSON-RPC URL of the settlement node.
	Endpoint string

	// Method is the RPC method called per spin. Defaults to "slots_settle".
	Method string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// MaxRetries bounds retries of retryable failures. Defaults to 3.
	MaxRetries int

	// BaseRetryDelay is the first backoff delay. Defaults to 500ms.
	BaseRetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff. Defaults to 5s.
	MaxRetryDelay time.Duration

	// HTTPClient allows injecting a custom HTTP client (useful for testing).
	HTTPClient *http.Client
}

// OnChain submits settlements to a JSON-RPC node.
type OnChain struct {
	config Config
	http   *http.Client
	nextID atomic.Int64
}

// NewOnChain creates a client, filling unset config with defaults.
func NewOnChain(cfg Config) *OnChain {
	if cfg.Method == "" {
		cfg.Method = "slots_settle"
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseRetryDelay == 0 {
		cfg.BaseRetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = 5 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OnChain{config: cfg, http: httpClient}
}

func (c *OnChain) Mode() string { return ModeOnChain }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

type settleResult struct {
	TxHash string `json:"txHash"`
}

// Settle submits req, retrying transport and 5xx failures with backoff.
func (c *OnChain) Settle(ctx context.Context, req Request) (Receipt, error) {
	if req.SpinID == "" {
		return Receipt{}, fmt.Errorf("settlement: spin id is required")
	}
	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  c.config.Method,
		Params: []any{map[string]any{
			"spinId":   req.SpinID,
			"player":   req.Player,
			"bet":      req.Bet.String(),
			"win":      req.Win.String(),
			"net":      req.Net().String(),
			"freeSpin": req.FreeSpin,
		}},
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay(attempt)):
			case <-ctx.Done():
				return Receipt{}, ctx.Err()
			}
		}

		result, err := c.call(ctx, body)
		if err == nil {
			if result.TxHash == "" {
				return Receipt{}, fmt.Errorf("settlement: node returned no transaction hash")
			}
			return Receipt{Ref: result.TxHash, Mode: ModeOnChain, SettledAt: time.Now().UTC()}, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.IsRetryable() {
			continue
		}
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.IsRetryable() {
			continue
		}
		return Receipt{}, err
	}
	return Receipt{}, fmt.Errorf("settlement: max retries exceeded: %w", lastErr)
}

func (c *OnChain) call(ctx context.Context, body rpcRequest) (*settleResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("settlement: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("settlement: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &HTTPError{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("settlement: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("settlement: invalid response JSON: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	var result settleResult
	if err := json.Unmarshal(rpcResp.Result, &result); err != nil {
		return nil, fmt.Errorf("settlement: invalid result: %w", err)
	}
	return &result, nil
}

func (c *OnChain) retryDelay(attempt int) time.Duration {
	delay := c.config.BaseRetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > c.config.MaxRetryDelay {
		delay = c.config.MaxRetryDelay
	}
	return delay
}
