package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	startFallbackDetail = "Failed to start session"
	chatFallbackDetail  = "Unknown API error"

	// maxResponseBodySize bounds how much of a reply is read (4MB).
	maxResponseBodySize = 4 << 20
)

// Client talks to the agent API over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the agent at baseURL. A nil httpClient
// uses a client without a timeout; the caller's context is the only bound.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse agent base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("agent base url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{baseURL: u, http: httpClient, logger: logger}, nil
}

// BaseURL returns the configured agent address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// StartConversation creates a new remote session and returns its id.
func (c *Client) StartConversation(ctx context.Context) (string, error) {
	status, body, err := c.post(ctx, c.baseURL.JoinPath("start_conversation"), nil)
	if err != nil {
		return "", err
	}
	if !isSuccess(status) {
		return "", &APIError{Status: status, Detail: detailText(body, startFallbackDetail)}
	}

	var sr sessionResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", &TransportError{Err: fmt.Errorf("decode session response: %w", err)}
	}
	if sr.SessionID == "" {
		return "", &APIError{Status: status, Detail: "response did not include a session_id"}
	}

	c.logger.Debug("agent session created", "session_id", sr.SessionID)
	return sr.SessionID, nil
}

// Chat sends one turn to the session. The reply body is decoded regardless
// of the HTTP status so server detail can be surfaced on failure.
func (c *Client) Chat(ctx context.Context, sessionID string, req TurnRequest) (*TurnResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode turn: %w", err)
	}

	status, body, err := c.post(ctx, c.baseURL.JoinPath("chat", sessionID), payload)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, &APIError{Status: status, Detail: detailText(body, chatFallbackDetail)}
	}

	var resp TurnResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode turn response: %w", err)}
	}

	c.logger.Debug("agent turn resolved",
		"session_id", sessionID,
		"confirmed", req.IsConfirmed(),
		"status", resp.Status,
	)
	return &resp, nil
}

func (c *Client) post(ctx context.Context, u *url.URL, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close agent response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return 0, nil, &TransportError{Err: fmt.Errorf("read response: %w", err)}
	}
	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
