package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"quickex/crypto"
)

// Client issues JSON-RPC calls against a quickexd endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nowFn    func() time.Time
	nextID   atomic.Uint64
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient, nowFn: time.Now}
}

// Call sends method with a single params object. When key is non-nil the
// request is signed. The decoded result is written into out when non-nil.
// Server-side failures are returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params interface{}, key *crypto.PrivateKey, out interface{}) error {
	req := RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		ID:      c.nextID.Add(1),
	}
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		req.Params = []json.RawMessage{encoded}
	}
	if key != nil {
		if err := SignRequest(&req, key, c.nowFn()); err != nil {
			return err
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var decoded struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
