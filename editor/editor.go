// Package editor abstracts the external prompt-driven image editing
// backend. The engine never talks to the model provider directly; it goes
// through a Backend so tests can substitute fakes and rate limits map to
// a well-known transient error.
package editor

import (
	"context"
	"fmt"
	"time"
)

// Params describes a single edit call.
type Params struct {
	// ImageData is the base64-encoded source image.
	ImageData string `json:"image_data"`
	// MimeType is the source image MIME type.
	MimeType string `json:"mime_type"`
	// Prompt is the natural-language edit instruction.
	Prompt string `json:"prompt"`
	// Model optionally selects a backend model variant.
	Model string `json:"model,omitempty"`
	// Seed pins the random seed for reproducible output. Zero means random.
	Seed int `json:"seed,omitempty"`
}

// Result is the outcome of a successful edit call.
type Result struct {
	// ImageData is the base64-encoded edited image.
	ImageData string `json:"image_data"`
	// MimeType is the edited image MIME type.
	MimeType string `json:"mime_type"`
	// Model is the model variant that produced the output.
	Model string `json:"model,omitempty"`
	// ProcessingTime is how long the provider reports the edit took.
	ProcessingTime time.Duration `json:"processing_time,omitempty"`
}

// Backend performs a single edit against an external provider. Edit must
// return an error wrapping retouch.ErrRateLimited when the provider
// throttles the call, so the retry executor can tell transient refusals
// from fatal ones.
type Backend interface {
	Edit(ctx context.Context, p Params) (Result, error)
}

// BackendError carries a provider error code alongside the message.
type BackendError struct {
	Code    string
	Message string
}

func (e *BackendError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("editor: %s", e.Message)
	}
	return fmt.Sprintf("editor: %s: %s", e.Code, e.Message)
}
