package api

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

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/edit"
)

// Client talks to a remote retouch server. It satisfies
// session.StatusClient, so a session.Machine can poll through it.
type Client struct {
	baseURL string
	hc      *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientHTTP replaces the underlying HTTP client.
func WithClientHTTP(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch submits an edit and returns its receipt.
func (c *Client) Dispatch(ctx context.Context, req edit.DispatchRequest) (*edit.Receipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("api: encode dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/edits", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("api: build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var rcpt edit.Receipt
	if err := c.do(httpReq, http.StatusAccepted, &rcpt); err != nil {
		return nil, err
	}
	return &rcpt, nil
}

// Status polls one job.
func (c *Client) Status(ctx context.Context, jobID string) (*edit.StatusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/edits/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("api: build status request: %w", err)
	}

	var st edit.StatusResponse
	if err := c.do(httpReq, http.StatusOK, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Cancel aborts a job that has not started running.
func (c *Client) Cancel(ctx context.Context, jobID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/v1/edits/"+url.PathEscape(jobID), nil)
	if err != nil {
		return fmt.Errorf("api: build cancel request: %w", err)
	}
	return c.do(httpReq, http.StatusNoContent, nil)
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	var er errorResponse
	json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er) //nolint:errcheck
	if er.Error == "" {
		er.Error = resp.Status
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", retouch.ErrJobNotFound, er.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", retouch.ErrInvalidRequest, er.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", retouch.ErrInvalidState, er.Error)
	default:
		return fmt.Errorf("api: server returned %s: %s", resp.Status, er.Error)
	}
}
