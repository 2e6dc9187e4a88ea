// Package edit implements the image-edit pipeline on top of the engine:
// request validation, dispatch, the edit job itself, and the status
// vocabulary clients poll against.
package edit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/editor"
	"github.com/retouchd/retouch/engine"
	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/retry"
)

// DispatchRequest is the client-facing dispatch payload. All three fields
// are required; the MIME type is restricted to the supported image formats.
type DispatchRequest struct {
	ImageData string `json:"image_data" validate:"required"`
	MimeType  string `json:"mime_type" validate:"required,oneof=image/png image/jpeg image/webp"`
	Prompt    string `json:"prompt" validate:"required"`
}

// Receipt acknowledges a dispatched edit.
type Receipt struct {
	JobID            string `json:"job_id"`
	EstimatedSeconds int    `json:"estimated_seconds"`
}

// StatusResponse is the answer to a status poll. Result is set only when
// Status is completed; Error only when it is failed.
type StatusResponse struct {
	Status Status  `json:"status"`
	Result *Output `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Service owns the dispatch/status protocol. It registers the edit job on
// the engine it is given, so constructing a Service is what makes the
// engine able to process edits.
type Service struct {
	eng      *engine.Engine
	cfg      Config
	validate *validator.Validate
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceConfig)

type serviceConfig struct {
	cfg       Config
	logger    *slog.Logger
	retryOpts []retry.Option
}

// WithConfig overrides the pipeline configuration.
func WithConfig(cfg Config) ServiceOption {
	return func(c *serviceConfig) { c.cfg = cfg }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(c *serviceConfig) { c.logger = l }
}

// WithRetryOptions passes extra options to the in-step retry executor.
func WithRetryOptions(opts ...retry.Option) ServiceOption {
	return func(c *serviceConfig) { c.retryOpts = append(c.retryOpts, opts...) }
}

// NewService wires the edit job into eng and returns the protocol surface.
func NewService(eng *engine.Engine, backend editor.Backend, opts ...ServiceOption) *Service {
	sc := serviceConfig{cfg: DefaultConfig(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&sc)
	}

	engine.Register(eng, NewDefinition(backend, sc.cfg, sc.retryOpts...))

	return &Service{
		eng:      eng,
		cfg:      sc.cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   sc.logger,
	}
}

// Config returns the pipeline configuration in effect.
func (s *Service) Config() Config {
	return s.cfg
}

// Dispatch validates req and enqueues exactly one edit job. A validation
// failure creates no job. The returned receipt carries the only identifier
// the job will ever have.
func (s *Service) Dispatch(ctx context.Context, req DispatchRequest) (*Receipt, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", retouch.ErrInvalidRequest, err)
	}

	j, err := engine.Enqueue(ctx, s.eng, JobName, Payload{
		ImageData: req.ImageData,
		MimeType:  req.MimeType,
		Prompt:    req.Prompt,
	})
	if err != nil {
		return nil, err
	}
	if j == nil || j.ID.IsNil() {
		return nil, retouch.ErrDispatchFailed
	}

	s.logger.InfoContext(ctx, "edit dispatched",
		slog.String("job_id", j.ID.String()),
		slog.String("mime_type", req.MimeType))

	return &Receipt{JobID: j.ID.String(), EstimatedSeconds: s.cfg.EstimatedSeconds}, nil
}

// Status resolves jobID and maps the job's state onto the client
// vocabulary. An identifier that does not resolve to a job, including one
// that is not a well-formed job id, yields retouch.ErrJobNotFound; a job
// that exists but failed yields a StatusFailed response, never an error.
func (s *Service) Status(ctx context.Context, jobID string) (*StatusResponse, error) {
	jid, err := id.ParseJobID(jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", retouch.ErrJobNotFound, jobID)
	}

	j, err := s.eng.GetJob(ctx, jid)
	if err != nil {
		return nil, err
	}

	resp := &StatusResponse{Status: StateStatus(j.State)}
	switch resp.Status {
	case StatusCompleted:
		var out Output
		if err := json.Unmarshal(j.Result, &out); err != nil {
			return nil, fmt.Errorf("edit: decode job result: %w", err)
		}
		resp.Result = &out
	case StatusFailed:
		resp.Error = j.LastError
		if resp.Error == "" {
			resp.Error = "edit failed"
		}
	}
	return resp, nil
}

// Cancel aborts a job that has not started running.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	jid, err := id.ParseJobID(jobID)
	if err != nil {
		return fmt.Errorf("%w: %q", retouch.ErrJobNotFound, jobID)
	}
	return s.eng.Cancel(ctx, jid)
}
