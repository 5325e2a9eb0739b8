// Package oracle talks to the outcome-verification service. Given a wager's
// condition text and category it returns whether the outcome could be
// verified, the winning address, and an evidence string. The escrow core
// consumes only the winner; evidence is logged for the audit trail.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verification is the oracle's judgement on a wager outcome.
type Verification struct {
	Verified bool   `json:"verified"`
	Winner   string `json:"winner"`
	Evidence string `json:"evidence"`
}

// Client abstracts the outcome-verification service.
type Client interface {
	VerifyOutcome(ctx context.Context, req VerifyRequest) (Verification, error)
}

// VerifyRequest carries the wager facts the oracle judges on.
type VerifyRequest struct {
	WagerID      uint64   `json:"wager_id"`
	Condition    string   `json:"condition"`
	Category     string   `json:"category"`
	Participants []string `json:"participants"`
}

// HTTPClient calls the verification service over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

// NewHTTPClient creates a client for the verification service at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
	}
}

// VerifyOutcome posts the wager facts to {baseURL}/verify.
func (c *HTTPClient) VerifyOutcome(ctx context.Context, req VerifyRequest) (Verification, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Verification{}, fmt.Errorf("oracle: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return Verification{}, fmt.Errorf("oracle: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return Verification{}, fmt.Errorf("oracle: verify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verification{}, fmt.Errorf("oracle: verify returned status %d", resp.StatusCode)
	}

	var v Verification
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return Verification{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	return v, nil
}

// FakeClient returns a canned verification; used in tests and local dev.
type FakeClient struct {
	Result Verification
	Err    error
}

func (f *FakeClient) VerifyOutcome(_ context.Context, _ VerifyRequest) (Verification, error) {
	if f.Err != nil {
		return Verification{}, f.Err
	}
	return f.Result, nil
}
