// Package client provides a typed HTTP client for the nexamon control API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Status is the monitor's operational snapshot as served by the API.
type Status struct {
	Running               bool             `json:"running"`
	LastCheckedAt         *time.Time       `json:"last_checked_at,omitempty"`
	TransactionsProcessed uint64           `json:"transactions_processed"`
	LastTransaction       *LastTransaction `json:"last_transaction,omitempty"`
	RecentErrors          []RecentError    `json:"recent_errors"`
}

// LastTransaction summarizes the most recently redistributed transfer.
type LastTransaction struct {
	Signature   string    `json:"signature"`
	Destination string    `json:"destination"`
	Amount      uint64    `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RecentError is one recorded pipeline error.
type RecentError struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// LogEntry is one captured log record.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// PlanLeg is one leg of a simulated redistribution.
type PlanLeg struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

// Simulation is the result of running an amount through the engine.
type Simulation struct {
	Amount         uint64 `json:"amount"`
	BelowThreshold bool   `json:"below_threshold"`
	Plan           struct {
		Amount uint64    `json:"amount"`
		Legs   []PlanLeg `json:"legs"`
	} `json:"plan"`
}

// RedistributionLeg is one stored leg outcome.
type RedistributionLeg struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
	Outcome     string `json:"outcome"`
	Signature   string `json:"signature,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Redistribution is one stored redistribution with its legs.
type Redistribution struct {
	ID          int64               `json:"id"`
	Signature   string              `json:"signature"`
	Destination string              `json:"destination"`
	Amount      uint64              `json:"amount"`
	BlockTime   time.Time           `json:"block_time"`
	ProcessedAt time.Time           `json:"processed_at"`
	Legs        []RedistributionLeg `json:"legs"`
}

// Client is the HTTP client for the nexamon monitor service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new monitor service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Status retrieves the monitor's current snapshot.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status Status
	if err := c.getJSON(ctx, "/api/v1/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Logs retrieves the recent redacted log entries.
func (c *Client) Logs(ctx context.Context) ([]LogEntry, error) {
	var resp struct {
		Logs []LogEntry `json:"logs"`
	}
	if err := c.getJSON(ctx, "/api/v1/logs", &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// Start starts the monitor loop.
func (c *Client) Start(ctx context.Context) error {
	return c.postJSON(ctx, "/api/v1/start", nil, nil)
}

// Stop stops the monitor loop. The stop takes effect between ticks.
func (c *Client) Stop(ctx context.Context) error {
	return c.postJSON(ctx, "/api/v1/stop", nil, nil)
}

// Config retrieves the active configuration with secrets redacted. The shape
// is left dynamic; callers typically filter it with jq expressions.
func (c *Client) Config(ctx context.Context) (map[string]interface{}, error) {
	var cfg map[string]interface{}
	if err := c.getJSON(ctx, "/api/v1/config", &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Simulate runs an amount through the redistribution engine server-side and
// returns the plan without submitting anything.
func (c *Client) Simulate(ctx context.Context, amount uint64) (*Simulation, error) {
	var sim Simulation
	body := map[string]uint64{"amount": amount}
	if err := c.postJSON(ctx, "/api/v1/simulate", body, &sim); err != nil {
		return nil, err
	}
	return &sim, nil
}

// Redistributions retrieves recent redistribution history.
func (c *Client) Redistributions(ctx context.Context, limit int) ([]Redistribution, error) {
	path := "/api/v1/redistributions"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var resp struct {
		Redistributions []Redistribution `json:"redistributions"`
	}
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Redistributions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse extracts the error message from an API error response.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
	}
	return fmt.Errorf("server returned %d", resp.StatusCode)
}
