package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/id"
	"github.com/retouchd/retouch/job"
)

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func newJob(name, queue string, state job.State, priority int) *job.Job {
	return &job.Job{
		Entity:     retouch.NewEntity(),
		ID:         id.NewJobID(),
		Name:       name,
		Queue:      queue,
		Payload:    []byte(`{"test":true}`),
		State:      state,
		Priority:   priority,
		MaxRetries: 3,
		RunAt:      time.Now().UTC().Add(-time.Second), // eligible immediately
	}
}

func TestJobEnqueueAndGet(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("apply-edit", "default", job.StatePending, 0)

	tests := []struct {
		name    string
		fn      func() error
		wantErr error
	}{
		{
			name:    "enqueue new job",
			fn:      func() error { return s.EnqueueJob(ctx, j) },
			wantErr: nil,
		},
		{
			name:    "enqueue duplicate job",
			fn:      func() error { return s.EnqueueJob(ctx, j) },
			wantErr: retouch.ErrJobAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Name != j.Name {
		t.Fatalf("got name %q, want %q", got.Name, j.Name)
	}

	_, err = s.GetJob(ctx, id.NewJobID())
	if !errors.Is(err, retouch.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobDequeue(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j1 := newJob("low", "default", job.StatePending, 1)
	j2 := newJob("high", "default", job.StatePending, 5)
	j3 := newJob("other-queue", "edits", job.StatePending, 10)
	j4 := newJob("future", "default", job.StatePending, 99)
	j4.RunAt = time.Now().UTC().Add(time.Hour)

	for _, j := range []*job.Job{j1, j2, j3, j4} {
		if err := s.EnqueueJob(ctx, j); err != nil {
			t.Fatalf("enqueue %s: %v", j.Name, err)
		}
	}

	got, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("dequeued %d jobs, want 2", len(got))
	}
	// Priority descending.
	if got[0].Name != "high" || got[1].Name != "low" {
		t.Errorf("dequeue order = [%s, %s], want [high, low]", got[0].Name, got[1].Name)
	}
	for _, j := range got {
		if j.State != job.StateRunning {
			t.Errorf("job %s state = %q, want running", j.Name, j.State)
		}
		if j.StartedAt == nil {
			t.Errorf("job %s StartedAt not set", j.Name)
		}
	}

	// Second dequeue finds nothing on that queue.
	again, err := s.DequeueJobs(ctx, []string{"default"}, 10)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("dequeued %d jobs on second pass, want 0", len(again))
	}
}

func TestJobDequeue_RetryingEligible(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("retry-me", "default", job.StateRetrying, 0)
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := s.DequeueJobs(ctx, []string{"default"}, 1)
	if err != nil {
		t.Fatalf("DequeueJobs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("dequeued %d jobs, want 1 (retrying jobs are eligible)", len(got))
	}
}

func TestJobUpdateAndDelete(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("mutate", "default", job.StatePending, 0)
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	j.State = job.StateCompleted
	j.Result = []byte(`{"output_ref":"out.png"}`)
	if err := s.UpdateJob(ctx, j); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.State != job.StateCompleted {
		t.Errorf("state = %q, want completed", got.State)
	}
	if string(got.Result) != `{"output_ref":"out.png"}` {
		t.Errorf("result = %s", got.Result)
	}

	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, retouch.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound after delete, got %v", err)
	}

	if err := s.UpdateJob(ctx, j); !errors.Is(err, retouch.ErrJobNotFound) {
		t.Errorf("UpdateJob on missing job: got %v, want ErrJobNotFound", err)
	}
}

func TestJobHeartbeatAndReap(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("long-running", "default", job.StatePending, 0)
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DequeueJobs(ctx, []string{"default"}, 1); err != nil {
		t.Fatal(err)
	}

	workerID := id.NewWorkerID()
	if err := s.HeartbeatJob(ctx, j.ID, workerID); err != nil {
		t.Fatalf("HeartbeatJob: %v", err)
	}

	got, _ := s.GetJob(ctx, j.ID)
	if got.HeartbeatAt == nil {
		t.Fatal("HeartbeatAt not set")
	}

	// Fresh heartbeat: not stale.
	stale, err := s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 0 {
		t.Errorf("found %d stale jobs, want 0", len(stale))
	}

	// Backdate the heartbeat past the threshold.
	old := time.Now().UTC().Add(-time.Hour)
	got.HeartbeatAt = &old
	if err := s.UpdateJob(ctx, got); err != nil {
		t.Fatal(err)
	}

	stale, err = s.ReapStaleJobs(ctx, time.Minute)
	if err != nil {
		t.Fatalf("ReapStaleJobs: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("found %d stale jobs, want 1", len(stale))
	}
	if stale[0].ID.String() != j.ID.String() {
		t.Errorf("stale job = %s, want %s", stale[0].ID, j.ID)
	}
}

func TestJobListAndCount(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for range 3 {
		if err := s.EnqueueJob(ctx, newJob("pending-job", "default", job.StatePending, 0)); err != nil {
			t.Fatal(err)
		}
	}
	done := newJob("done-job", "edits", job.StateCompleted, 0)
	if err := s.EnqueueJob(ctx, done); err != nil {
		t.Fatal(err)
	}

	pending, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListJobsByState: %v", err)
	}
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3", len(pending))
	}

	limited, err := s.ListJobsByState(ctx, job.StatePending, job.ListOpts{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}

	count, err := s.CountJobs(ctx, job.CountOpts{State: job.StatePending})
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	byQueue, err := s.CountJobs(ctx, job.CountOpts{Queue: "edits"})
	if err != nil {
		t.Fatal(err)
	}
	if byQueue != 1 {
		t.Errorf("byQueue = %d, want 1", byQueue)
	}
}

func TestCheckpoints(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	jobID := id.NewJobID()

	// Missing checkpoint returns nil data, nil error.
	data, err := s.GetCheckpoint(ctx, jobID, "edit")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if data != nil {
		t.Fatalf("data = %v, want nil for missing checkpoint", data)
	}

	if err := s.SaveCheckpoint(ctx, jobID, "edit", []byte("result")); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	data, err = s.GetCheckpoint(ctx, jobID, "edit")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "result" {
		t.Errorf("data = %q, want %q", data, "result")
	}

	// Empty checkpoints must round-trip as non-nil.
	if err := s.SaveCheckpoint(ctx, jobID, "settle", []byte{}); err != nil {
		t.Fatal(err)
	}
	data, err = s.GetCheckpoint(ctx, jobID, "settle")
	if err != nil {
		t.Fatal(err)
	}
	if data == nil {
		t.Error("empty checkpoint returned nil data; must be non-nil to mark completion")
	}

	// Overwrite replaces.
	if err := s.SaveCheckpoint(ctx, jobID, "edit", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, _ = s.GetCheckpoint(ctx, jobID, "edit")
	if string(data) != "v2" {
		t.Errorf("data = %q, want %q", data, "v2")
	}

	cps, err := s.ListCheckpoints(ctx, jobID)
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(cps) != 2 {
		t.Errorf("checkpoints = %d, want 2", len(cps))
	}

	// Scoped to the job.
	other, err := s.ListCheckpoints(ctx, id.NewJobID())
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("other job checkpoints = %d, want 0", len(other))
	}
}

func TestDeleteJobRemovesCheckpoints(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	j := newJob("checkpointed", "default", job.StatePending, 0)
	if err := s.EnqueueJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveCheckpoint(ctx, j.ID, "edit", []byte("x")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatal(err)
	}

	data, err := s.GetCheckpoint(ctx, j.ID, "edit")
	if err != nil {
		t.Fatal(err)
	}
	if data != nil {
		t.Error("checkpoint survived job deletion")
	}
}
