package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/icsattest/icsattest/attest"
	"github.com/icsattest/icsattest/log"
)

// VerifyResponse is the collector's verdict envelope. Scheme-specific
// handlers name the verdict and the recovered plaintext differently
// (verified/success, recovered_value/decrypted_value); both spellings are
// decoded and unified by accessors.
type VerifyResponse struct {
	Verified         *bool    `json:"verified,omitempty"`
	Success          *bool    `json:"success,omitempty"`
	ProcessingTimeMS *float64 `json:"processing_time_ms,omitempty"`
	Algorithm        string   `json:"algorithm,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	RecoveredValue   *float64 `json:"recovered_value,omitempty"`
	DecryptedValue   *float64 `json:"decrypted_value,omitempty"`
}

// OK reports the collector's verdict under either field spelling.
func (r *VerifyResponse) OK() bool {
	if r.Verified != nil {
		return *r.Verified
	}
	if r.Success != nil {
		return *r.Success
	}
	return false
}

// Recovered returns the server-side plaintext where the scheme produces
// one, or nil.
func (r *VerifyResponse) Recovered() *float64 {
	if r.RecoveredValue != nil {
		return r.RecoveredValue
	}
	return r.DecryptedValue
}

// Client posts attestation payloads to the collector. The underlying
// connection pool is shared for the duration of a run and sized to the
// engine's concurrency cap.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *log.Logger
}

// NewClient builds a pooled client. timeout is the per-request wall-clock
// bound; maxConns sizes the idle pool to the engine's concurrency.
func NewClient(baseURL string, timeout time.Duration, maxConns int) *Client {
	if maxConns <= 0 {
		maxConns = 50
	}
	transport := &http.Transport{
		MaxIdleConns:        maxConns * 2,
		MaxIdleConnsPerHost: maxConns,
		IdleConnTimeout:     30 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: baseURL,
		logger:  log.Default().Module("stream"),
	}
}

// BaseURL returns the configured collector base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes GET /health, retrying with exponential backoff until the
// context is cancelled or the backoff's default 15-minute elapsed-time
// limit passes. Used at startup before a run commits to a matrix.
func (c *Client) Health(ctx context.Context) error {
	probe := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("health probe failed, retrying", "error", err)
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("health endpoint returned %d", resp.StatusCode)
			c.logger.Warn("health probe failed, retrying", "status", resp.StatusCode)
			return err
		}
		return nil
	}
	if err := backoff.Retry(probe, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return fmt.Errorf("stream: collector not healthy: %w", err)
	}
	return nil
}

// Post sends one payload to its scheme endpoint and decodes the verdict.
// The returned status code is the raw HTTP status (0 on transport error).
func (c *Client) Post(ctx context.Context, p attest.Payload) (*VerifyResponse, int, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, 0, fmt.Errorf("stream: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+p.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("stream: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("stream: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), 120))
	}
	var vr VerifyResponse
	if err := json.Unmarshal(raw, &vr); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("stream: decode response: %w", err)
	}
	return &vr, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
