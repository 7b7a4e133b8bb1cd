package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer describes the HTTP client used by Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("daemon returned %d: %s", e.Code, e.Message)
}

// Client calls the daemon's HTTP API.
type Client struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewClient builds a client for baseURL. A nil doer uses an http.Client with
// a short timeout.
func NewClient(baseURL, token string, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  doer,
	}
}

// Status fetches daemon status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Trackers fetches the roster under the active mode.
func (c *Client) Trackers(ctx context.Context) (TrackerListResponse, error) {
	var resp TrackerListResponse
	err := c.do(ctx, http.MethodGet, "/api/trackers", nil, &resp)
	return resp, err
}

// AddTracker creates a tracker at the configured start position.
func (c *Client) AddTracker(ctx context.Context, id int) (TrackerView, error) {
	var resp TrackerView
	err := c.do(ctx, http.MethodPost, "/api/trackers", TrackerRequest{ID: id}, &resp)
	return resp, err
}

// RemoveTracker deletes a tracker.
func (c *Client) RemoveTracker(ctx context.Context, id int) error {
	var resp TrackerRemovedResponse
	return c.do(ctx, http.MethodDelete, "/api/trackers", TrackerRequest{ID: id}, &resp)
}

// Mode reports the active mode and the available ones.
func (c *Client) Mode(ctx context.Context) (ModeResponse, error) {
	var resp ModeResponse
	err := c.do(ctx, http.MethodGet, "/api/mode", nil, &resp)
	return resp, err
}

// SetMode switches the active mode.
func (c *Client) SetMode(ctx context.Context, mode string) (ModeResponse, error) {
	var resp ModeResponse
	err := c.do(ctx, http.MethodPost, "/api/mode", ModeRequest{Mode: mode}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
