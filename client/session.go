package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brojonat/sendsol/service/session"
)

var (
	// ErrProviderMissing is returned when the server has no wallet provider
	// installed.
	ErrProviderMissing = errors.New("wallet provider missing")

	// ErrBusy is returned when the session is already connecting or sending.
	ErrBusy = errors.New("session busy")

	// ErrStreamClosed is returned by Watch when the server ends the session.
	ErrStreamClosed = errors.New("session stream closed")
)

// Client is the HTTP client for the sendsol session service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new session service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Connect and transfer wait on the user approving in the wallet.
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Session returns the current session snapshot.
func (c *Client) Session(ctx context.Context) (*session.Snapshot, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/session", nil)
}

// Connect asks the server to connect its wallet provider. A declined or
// failed connection is not an error: inspect the returned notification.
func (c *Client) Connect(ctx context.Context) (*session.Snapshot, error) {
	snap, err := c.do(ctx, http.MethodPost, "/api/v1/session/connect", nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("connect requested", "state", snap.State, "account", snap.Account)
	return snap, nil
}

// SetDraft replaces the session's transfer draft.
func (c *Client) SetDraft(ctx context.Context, recipient, amount string) (*session.Snapshot, error) {
	return c.do(ctx, http.MethodPut, "/api/v1/session/draft", &session.TransferDraft{
		Recipient: recipient,
		Amount:    amount,
	})
}

// Transfer submits a transfer. A nil draft sends the session's current
// draft. Validation and transfer failures are reported in the snapshot's
// notification, not as errors.
func (c *Client) Transfer(ctx context.Context, draft *session.TransferDraft) (*session.Snapshot, error) {
	snap, err := c.do(ctx, http.MethodPost, "/api/v1/session/transfer", draft)
	if err != nil {
		return nil, err
	}
	if snap.Receipt != nil {
		c.logger.Debug("transfer submitted", "signature", snap.Receipt.Signature)
	}
	return snap, nil
}

// RefreshBalance asks the server to re-read the account balance.
func (c *Client) RefreshBalance(ctx context.Context) (*session.Snapshot, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/session/balance", nil)
}

// Watch streams session events to fn until ctx is done, fn returns an
// error, or the server closes the session (ErrStreamClosed). The first
// event carries the snapshot at subscription time.
func (c *Client) Watch(ctx context.Context, fn func(session.Event) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/stream/session", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No timeout for streaming
	streamClient := &http.Client{Transport: c.httpClient.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var currentEvent, currentData string

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			name, data := currentEvent, currentData
			currentEvent, currentData = "", ""

			switch name {
			case "session":
				var ev session.Event
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					c.logger.Warn("failed to decode session event", "error", err)
					continue
				}
				if err := fn(ev); err != nil {
					return err
				}
			case "closed":
				return ErrStreamClosed
			case "connected":
				c.logger.Debug("subscribed to session stream", "data", data)
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading SSE stream: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return io.ErrUnexpectedEOF
}

// Await blocks until an event satisfies matcher and returns it.
func (c *Client) Await(ctx context.Context, matcher func(*session.Event) bool) (*session.Event, error) {
	var found *session.Event
	errFound := errors.New("found")

	err := c.Watch(ctx, func(ev session.Event) error {
		if matcher(&ev) {
			found = &ev
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	return nil, err
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned unhealthy status: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*session.Snapshot, error) {
	var reader io.Reader
	if body != nil && !isNilDraft(body) {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// The server only accepts JSON on state-changing routes, body or not.
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &snap, nil
}

func isNilDraft(body interface{}) bool {
	d, ok := body.(*session.TransferDraft)
	return ok && d == nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	switch resp.StatusCode {
	case http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", ErrProviderMissing, errResp.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrBusy, errResp.Error)
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
