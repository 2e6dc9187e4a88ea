package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/retouchd/retouch"
)

// HTTPBackend calls a JSON-over-HTTP edit endpoint. HTTP 429 is reported
// as retouch.ErrRateLimited; other non-2xx statuses are fatal.
type HTTPBackend struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(b *HTTPBackend) { b.client = c }
}

// NewHTTPBackend creates a backend for the given endpoint. The API key is
// sent as a bearer token; an empty key fails at call time, not here, so
// construction stays infallible for wiring.
func NewHTTPBackend(endpoint, apiKey string, opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type editResponse struct {
	ImageData         string  `json:"image_data"`
	MimeType          string  `json:"mime_type"`
	Model             string  `json:"model"`
	ProcessingSeconds float64 `json:"processing_seconds"`
	Error             *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Edit posts the edit request and decodes the result.
func (b *HTTPBackend) Edit(ctx context.Context, p Params) (Result, error) {
	if b.apiKey == "" {
		return Result{}, retouch.ErrMissingAPIKey
	}

	body, err := json.Marshal(p)
	if err != nil {
		return Result{}, fmt.Errorf("editor: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("editor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("editor: call backend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return Result{}, fmt.Errorf("%w: backend returned 429", retouch.ErrRateLimited)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Result{}, fmt.Errorf("editor: read response: %w", err)
	}

	var decoded editResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return Result{}, &BackendError{Code: resp.Status, Message: string(raw)}
		}
		return Result{}, fmt.Errorf("editor: decode response: %w", err)
	}

	if decoded.Error != nil {
		return Result{}, &BackendError{Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if resp.StatusCode >= 400 {
		return Result{}, &BackendError{Code: resp.Status, Message: string(raw)}
	}
	if decoded.ImageData == "" {
		return Result{}, &BackendError{Message: "response missing image_data"}
	}

	mime := decoded.MimeType
	if mime == "" {
		mime = p.MimeType
	}

	return Result{
		ImageData:      decoded.ImageData,
		MimeType:       mime,
		Model:          decoded.Model,
		ProcessingTime: time.Duration(decoded.ProcessingSeconds * float64(time.Second)),
	}, nil
}
