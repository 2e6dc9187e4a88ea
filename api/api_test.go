package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/api"
	"github.com/retouchd/retouch/backoff"
	"github.com/retouchd/retouch/edit"
	"github.com/retouchd/retouch/editor"
	"github.com/retouchd/retouch/engine"
	"github.com/retouchd/retouch/session"
	"github.com/retouchd/retouch/store/memory"
)

var _ session.StatusClient = (*api.Client)(nil)

type stubBackend struct {
	result editor.Result
	err    error
}

func (s *stubBackend) Edit(_ context.Context, _ editor.Params) (editor.Result, error) {
	if s.err != nil {
		return editor.Result{}, s.err
	}
	return s.result, nil
}

func newTestServer(t *testing.T, backend editor.Backend) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng, err := engine.New(memory.New(),
		engine.WithConfig(retouch.Config{
			Concurrency:  2,
			Queues:       []string{"default"},
			PollInterval: 10 * time.Millisecond,
		}),
		engine.WithBackoff(backoff.NewConstant(10*time.Millisecond)),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	cfg := edit.DefaultConfig()
	cfg.SettleDelay = time.Millisecond
	cfg.BackoffBase = time.Millisecond
	svc := edit.NewService(eng, backend, edit.WithConfig(cfg))

	srv := httptest.NewServer(api.NewHandler(svc, eng).Router())
	t.Cleanup(srv.Close)
	return srv, eng
}

func validDispatchBody() string {
	return `{"image_data":"AAA","mime_type":"image/png","prompt":"make it blue"}`
}

func TestHandler_Dispatch(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Post(srv.URL+"/v1/edits", "application/json", strings.NewReader(validDispatchBody()))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var rcpt edit.Receipt
	if err := json.NewDecoder(resp.Body).Decode(&rcpt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if rcpt.JobID == "" {
		t.Error("receipt has empty job id")
	}
	if rcpt.EstimatedSeconds <= 0 {
		t.Errorf("EstimatedSeconds = %d, want > 0", rcpt.EstimatedSeconds)
	}
}

func TestHandler_DispatchRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"image_data":`},
		{"missing prompt", `{"image_data":"AAA","mime_type":"image/png"}`},
		{"unsupported mime", `{"image_data":"AAA","mime_type":"image/gif","prompt":"p"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/edits", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestHandler_StatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/v1/edits/job_does_not_exist")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHandler_Health(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandler_Stats(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	client := api.NewClient(srv.URL)

	for range 3 {
		if _, err := client.Dispatch(context.Background(), edit.DispatchRequest{
			ImageData: "AAA", MimeType: "image/png", Prompt: "p",
		}); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/v1/stats?queue=default")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var stats engine.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Pending != 3 {
		t.Errorf("Pending = %d, want 3", stats.Pending)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	backend := &stubBackend{result: editor.Result{ImageData: "BBB", MimeType: "image/png"}}
	srv, eng := newTestServer(t, backend)

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer eng.Stop(context.Background()) //nolint:errcheck

	client := api.NewClient(srv.URL)
	rcpt, err := client.Dispatch(context.Background(), edit.DispatchRequest{
		ImageData: "AAA", MimeType: "image/png", Prompt: "make it blue",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var st *edit.StatusResponse
	deadline := time.After(5 * time.Second)
	for {
		st, err = client.Status(context.Background(), rcpt.JobID)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.Status.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out in status %q", st.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if st.Status != edit.StatusCompleted {
		t.Fatalf("status = %q, want completed (error %q)", st.Status, st.Error)
	}
	if st.Result == nil || st.Result.ImageData != "BBB" {
		t.Errorf("result = %+v, want image_data BBB", st.Result)
	}
}

func TestClient_DispatchValidationError(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	client := api.NewClient(srv.URL)

	_, err := client.Dispatch(context.Background(), edit.DispatchRequest{Prompt: "p"})
	if !errors.Is(err, retouch.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestClient_StatusNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	client := api.NewClient(srv.URL)

	_, err := client.Status(context.Background(), "job_missing")
	if !errors.Is(err, retouch.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestClient_Cancel(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	client := api.NewClient(srv.URL)

	// Engine not started, so the job stays pending and can be cancelled.
	rcpt, err := client.Dispatch(context.Background(), edit.DispatchRequest{
		ImageData: "AAA", MimeType: "image/png", Prompt: "p",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if err := client.Cancel(context.Background(), rcpt.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	st, err := client.Status(context.Background(), rcpt.JobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Status != edit.StatusFailed {
		t.Errorf("status after cancel = %q, want failed", st.Status)
	}

	// Cancelling a terminal job is a conflict.
	if err := client.Cancel(context.Background(), rcpt.JobID); !errors.Is(err, retouch.ErrInvalidState) {
		t.Errorf("second cancel err = %v, want ErrInvalidState", err)
	}
}
