package edit

import (
	"context"

	"github.com/retouchd/retouch/backoff"
	"github.com/retouchd/retouch/editor"
	"github.com/retouchd/retouch/job"
	"github.com/retouchd/retouch/retry"
	"github.com/retouchd/retouch/step"
)

// JobName is the registered name of the edit job.
const JobName = "image.edit"

// Payload is the input of one edit job.
type Payload struct {
	ImageData string `json:"image_data"`
	MimeType  string `json:"mime_type"`
	Prompt    string `json:"prompt"`
}

// Output is the body recorded on a completed edit job.
type Output struct {
	ImageData string `json:"image_data"`
	MimeType  string `json:"mime_type"`
}

// NewDefinition builds the edit job. The backend call runs as a single
// checkpointed step so a platform-level re-execution of the job reuses the
// recorded result instead of calling the backend again. Rate limits are
// retried inside the step; any other backend error fails the step
// immediately.
func NewDefinition(backend editor.Backend, cfg Config, retryOpts ...retry.Option) *job.Definition[Payload, Output] {
	opts := append([]retry.Option{
		retry.WithMaxAttempts(cfg.MaxAttempts),
		retry.WithStrategy(backoff.NewExponential(cfg.BackoffBase, 0)),
	}, retryOpts...)
	exec := retry.New(opts...)

	handler := func(ctx context.Context, s *step.Steps, p Payload) (Output, error) {
		res, err := step.RunWithResult(ctx, s, "edit", func(ctx context.Context) (editor.Result, error) {
			return retry.DoWithResult(ctx, exec, func(ctx context.Context) (editor.Result, error) {
				return backend.Edit(ctx, editor.Params{
					ImageData: p.ImageData,
					MimeType:  p.MimeType,
					Prompt:    p.Prompt,
				})
			})
		})
		if err != nil {
			return Output{}, err
		}

		if cfg.SettleDelay > 0 {
			if err := s.Sleep(ctx, "settle", cfg.SettleDelay); err != nil {
				return Output{}, err
			}
		}

		return Output{ImageData: res.ImageData, MimeType: res.MimeType}, nil
	}

	return job.NewDefinition(JobName, handler,
		job.WithMaxRetries(cfg.MaxRetries),
		job.WithQueue(cfg.Queue),
	)
}
