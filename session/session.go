// Package session drives a single client editing session through an
// explicit finite-state workflow: upload validation, dispatch, status
// polling, and reset. One Machine owns one session; the poll timer exists
// only while a job is outstanding, and a held preview resource is released
// exactly once when the session discards it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/retouchd/retouch/edit"
	"github.com/retouchd/retouch/upload"
)

// ErrInvalidTransition is returned when an event is not legal in the
// machine's current phase.
var ErrInvalidTransition = errors.New("session: invalid transition")

// Phase is the machine's current position in the workflow.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseReady      Phase = "ready"
	PhaseProcessing Phase = "processing"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// State is a snapshot of the session. File and Preview are set from Ready
// onward, JobID only while Processing, Result only in Success, Error only
// in Error or in Idle right after a validation failure.
type State struct {
	Phase   Phase
	File    *upload.File
	Preview *upload.Preview
	Prompt  string
	JobID   string
	Result  *edit.Output
	Error   string
}

// StatusClient answers status polls. *edit.Service satisfies it, as does
// the HTTP client for remote sessions.
type StatusClient interface {
	Status(ctx context.Context, jobID string) (*edit.StatusResponse, error)
}

// Machine is the session reducer plus its poll timer. All event methods
// are safe for concurrent use; the poll loop runs on its own goroutine and
// reports back through the same guarded transitions.
type Machine struct {
	client   StatusClient
	notify   Notifier
	logger   *slog.Logger
	interval time.Duration

	mu         sync.Mutex
	state      State
	cancelPoll context.CancelFunc
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotifier sets the side-channel notifier.
func WithNotifier(n Notifier) Option {
	return func(m *Machine) { m.notify = n }
}

// WithLogger sets the machine logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithPollInterval overrides the status-poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) { m.interval = d }
}

// New creates an idle Machine polling through client.
func New(client StatusClient, opts ...Option) *Machine {
	m := &Machine{
		client:   client,
		notify:   NopNotifier{},
		logger:   slog.Default(),
		interval: 5 * time.Second,
		state:    State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the session.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Polling reports whether a poll timer is live.
func (m *Machine) Polling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelPoll != nil
}

func (m *Machine) invalid(event string) error {
	return fmt.Errorf("%w: %s in phase %q", ErrInvalidTransition, event, m.state.Phase)
}

// StartValidation begins checking a new upload. Legal from Idle; any error
// left over from a previous validation failure is cleared.
func (m *Machine) StartValidation() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseIdle {
		return m.invalid("start validation")
	}
	m.state.Phase = PhaseValidating
	m.state.Error = ""
	return nil
}

// ValidationSucceeded stores the accepted upload and its preview.
func (m *Machine) ValidationSucceeded(f *upload.File, p *upload.Preview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseValidating {
		return m.invalid("validation success")
	}
	m.state.Phase = PhaseReady
	m.state.File = f
	m.state.Preview = p
	return nil
}

// ValidationFailed returns to Idle with the failure message kept for
// display.
func (m *Machine) ValidationFailed(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseValidating {
		return m.invalid("validation failure")
	}
	m.state.Phase = PhaseIdle
	m.state.Error = reason
	m.notify.Event("upload_rejected", map[string]string{"reason": reason})
	return nil
}

// SetPrompt updates the prompt text. Legal only while Ready.
func (m *Machine) SetPrompt(prompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseReady {
		return m.invalid("set prompt")
	}
	m.state.Prompt = prompt
	return nil
}

// StartProcessing enters Processing ahead of the dispatch call. Any prior
// job id and error are cleared; the poll timer is not armed until
// DispatchSucceeded delivers an id.
func (m *Machine) StartProcessing() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseReady {
		return m.invalid("start processing")
	}
	m.state.Phase = PhaseProcessing
	m.state.JobID = ""
	m.state.Error = ""
	return nil
}

// DispatchSucceeded records the job id and arms the poll timer.
func (m *Machine) DispatchSucceeded(jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseProcessing || m.state.JobID != "" {
		return m.invalid("dispatch success")
	}
	m.state.JobID = jobID
	m.startPollingLocked(jobID)
	m.notify.Event("edit_dispatched", map[string]string{"job_id": jobID})
	return nil
}

// DispatchFailed surfaces a dispatch error as the session's terminal
// error state. No timer was armed, so there is nothing to cancel.
func (m *Machine) DispatchFailed(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseProcessing {
		return m.invalid("dispatch failure")
	}
	m.state.Phase = PhaseError
	m.state.Error = msg
	m.notify.Event("edit_failed", map[string]string{"stage": "dispatch"})
	return nil
}

// Reset returns to Idle from anywhere: the poll timer is cancelled, the
// preview resource is released, and every per-session field is cleared.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopPollingLocked()
	if m.state.Preview != nil {
		m.state.Preview.Release()
	}
	m.state = State{Phase: PhaseIdle}
	m.notify.Event("session_reset", nil)
}

// Close tears the session down, as on unmount. Equivalent to Reset except
// no notifier event fires.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopPollingLocked()
	if m.state.Preview != nil {
		m.state.Preview.Release()
	}
	m.state = State{Phase: PhaseIdle}
}

func (m *Machine) startPollingLocked(jobID string) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelPoll = cancel
	go m.pollLoop(ctx, jobID)
}

func (m *Machine) stopPollingLocked() {
	if m.cancelPoll != nil {
		m.cancelPoll()
		m.cancelPoll = nil
	}
}

// pollLoop issues one status query per tick and waits for its answer
// before arming the next tick, so queries never overlap. A terminal
// answer, or a transport failure, ends the loop through a guarded
// transition; a cancelled context ends it silently.
func (m *Machine) pollLoop(ctx context.Context, jobID string) {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		st, err := m.client.Status(ctx, jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Warn("status poll failed", slog.String("job_id", jobID), slog.Any("error", err))
			m.finishJob(jobID, nil, "could not check edit status")
			return
		}

		switch st.Status {
		case edit.StatusCompleted:
			m.finishJob(jobID, st.Result, "")
			return
		case edit.StatusFailed:
			msg := st.Error
			if msg == "" {
				msg = "edit failed"
			}
			m.finishJob(jobID, nil, msg)
			return
		}

		timer.Reset(m.interval)
	}
}

// finishJob applies a terminal poll outcome. The transition is applied
// only if the session is still Processing this exact job; a late answer
// for an abandoned job is discarded.
func (m *Machine) finishJob(jobID string, result *edit.Output, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseProcessing || m.state.JobID != jobID {
		return
	}
	m.stopPollingLocked()
	m.state.JobID = ""
	if errMsg != "" {
		m.state.Phase = PhaseError
		m.state.Error = errMsg
		m.notify.Event("edit_failed", map[string]string{"job_id": jobID})
		return
	}
	m.state.Phase = PhaseSuccess
	m.state.Result = result
	m.notify.Event("edit_completed", map[string]string{"job_id": jobID})
}
