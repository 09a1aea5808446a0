// Package query dispatches KQL queries to the Log Analytics query API.
package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"logq/internal/auth"
	"logq/internal/workspace"

	"github.com/google/uuid"
)

const (
	DefaultEndpoint = "https://api.loganalytics.io"

	// MaxRows caps every request. One row beyond the display limit lets the
	// shell tell a complete result from a truncated one.
	MaxRows = 1001
)

var ErrNoWorkspaces = errors.New("no workspaces selected")

type Config struct {
	Endpoint   string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client executes queries. It holds no per-query state; overlapping calls are
// permitted and complete independently.
type Client struct {
	endpoint string
	http     *http.Client
	creds    auth.Provider
	logger   *slog.Logger
}

func NewClient(cfg Config, creds auth.Provider) *Client {
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 2 * time.Minute
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{endpoint: endpoint, http: httpClient, creds: creds, logger: logger}
}

// requestBody is the wire format for POST /v1/workspaces/{id}/query.
type requestBody struct {
	Query      string   `json:"query"`
	Workspaces []string `json:"workspaces"`
	MaxRows    int      `json:"maxRows"`
	Timespan   string   `json:"timespan,omitempty"`
}

func buildRequestBody(text string, workspaces []workspace.Workspace, timespan string) requestBody {
	return requestBody{
		Query:      text,
		Workspaces: workspace.Names(workspaces),
		MaxRows:    MaxRows,
		Timespan:   strings.TrimSpace(timespan),
	}
}

// Execute runs text against the selected workspaces. The first workspace is
// the routing target; every workspace is addressed by name in the body. An
// empty timespan leaves the time range to the query text.
func (c *Client) Execute(ctx context.Context, text string, workspaces []workspace.Workspace, timespan string) (*Result, error) {
	if len(workspaces) == 0 {
		return nil, ErrNoWorkspaces
	}

	encoded, err := json.Marshal(buildRequestBody(text, workspaces, timespan))
	if err != nil {
		return nil, fmt.Errorf("marshal query request: %w", err)
	}

	cred, err := auth.Acquire(ctx, c.creds, []string{auth.LogAnalyticsScope})
	if err != nil {
		return nil, fmt.Errorf("acquire credential: %w", err)
	}

	target := c.endpoint + "/v1/workspaces/" + url.PathEscape(workspaces[0].CustomerID) + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("x-ms-client-request-id", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", workspaces[0].Name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("query completed",
		"request_id", requestID,
		"status", resp.StatusCode,
		"workspaces", len(workspaces),
		"timespan", timespan,
		"elapsed", time.Since(started),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A body we cannot read still yields a QueryError; the display falls
		// back to the generic message.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &QueryError{Status: resp.StatusCode, Body: body, RequestID: requestID}
	}

	res, err := decodeResult(resp.Body)
	if err != nil {
		return nil, err
	}
	res.Elapsed = time.Since(started)
	return res, nil
}
