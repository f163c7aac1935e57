// Package monitor provides a thin HTTP client for the external
// monitoring/ticketing backend. Calls are read-mostly proxies: failures
// surface immediately and are never retried.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"infraops/pkg/logx"
)

// Client proxies requests to the monitoring service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logx.Logger
}

// NewClient creates a monitor client for the given base URL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logx.NewLogger("monitor"),
	}
}

func (c *Client) request(ctx context.Context, method, path string, body any) (string, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", fmt.Errorf("build monitor request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("monitor service unreachable: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on defer

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read monitor response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("monitor service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// GetLogs fetches logs, optionally filtered by resource ID.
func (c *Client) GetLogs(ctx context.Context, resourceID string) (string, error) {
	path := "/logs"
	if resourceID != "" {
		path += "?resource_id=" + url.QueryEscape(resourceID)
	}
	return c.request(ctx, http.MethodGet, path, nil)
}

// GetMetrics fetches metrics for a resource.
func (c *Client) GetMetrics(ctx context.Context, resourceID string) (string, error) {
	path := "/metrics"
	if resourceID != "" {
		path += "?resource_id=" + url.QueryEscape(resourceID)
	}
	return c.request(ctx, http.MethodGet, path, nil)
}

// GetTickets lists open tickets.
func (c *Client) GetTickets(ctx context.Context) (string, error) {
	return c.request(ctx, http.MethodGet, "/tickets", nil)
}

// CreateTicket opens a ticket with the given title and description.
func (c *Client) CreateTicket(ctx context.Context, title, description string) (string, error) {
	payload := map[string]string{"title": title, "description": description}
	return c.request(ctx, http.MethodPost, "/tickets", payload)
}

// Health probes the monitoring service health endpoint.
func (c *Client) Health(ctx context.Context) (string, error) {
	return c.request(ctx, http.MethodGet, "/health", nil)
}
