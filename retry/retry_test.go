package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/retry"
)

func noSleep() retry.Option {
	return retry.WithSleep(func(_ context.Context, _ time.Duration) error { return nil })
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	e := retry.New(noSleep())

	calls := 0
	err := e.Do(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_RetriesTransientThenSucceeds(t *testing.T) {
	e := retry.New(noSleep())

	calls := 0
	err := e.Do(context.Background(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return retouch.ErrRateLimited
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDo_AttemptBoundIsExactlyMaxAttempts(t *testing.T) {
	e := retry.New(noSleep())

	calls := 0
	err := e.Do(context.Background(), func(_ context.Context) error {
		calls++
		return retouch.ErrRateLimited
	})
	if calls != 3 {
		t.Errorf("calls = %d, want exactly 3", calls)
	}
	if !errors.Is(err, retouch.ErrMaxRetriesExceeded) {
		t.Errorf("err = %v, want ErrMaxRetriesExceeded", err)
	}
	if !errors.Is(err, retouch.ErrRateLimited) {
		t.Errorf("err = %v, should wrap the last transient error", err)
	}
}

func TestDo_FatalErrorStopsImmediately(t *testing.T) {
	fatal := errors.New("model refused the prompt")
	var slept []time.Duration
	e := retry.New(retry.WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	calls := 0
	err := e.Do(context.Background(), func(_ context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (fatal errors must not retry)", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v, want no delays for fatal errors", slept)
	}
}

func TestDo_ExponentialDelaysBetweenAttempts(t *testing.T) {
	var slept []time.Duration
	e := retry.New(retry.WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	_ = e.Do(context.Background(), func(_ context.Context) error {
		return retouch.ErrRateLimited
	})

	// Three attempts: delays after attempt 1 and 2, none after the last.
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(slept), slept, len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, slept[i], want[i])
		}
	}

	var total time.Duration
	for _, d := range slept {
		total += d
	}
	if total != 3*time.Second {
		t.Errorf("total delay = %v, want 3s", total)
	}
}

func TestDo_CanceledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := retry.New(retry.WithSleep(func(_ context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	calls := 0
	err := e.Do(ctx, func(_ context.Context) error {
		calls++
		return retouch.ErrRateLimited
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_CustomClassifier(t *testing.T) {
	transient := errors.New("upstream hiccup")
	e := retry.New(
		noSleep(),
		retry.WithClassifier(func(err error) bool { return errors.Is(err, transient) }),
	)

	calls := 0
	err := e.Do(context.Background(), func(_ context.Context) error {
		calls++
		if calls == 1 {
			return transient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	e := retry.New(noSleep())

	calls := 0
	got, err := retry.DoWithResult(context.Background(), e, func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", retouch.ErrRateLimited
		}
		return "edited.png", nil
	})
	if err != nil {
		t.Fatalf("DoWithResult: %v", err)
	}
	if got != "edited.png" {
		t.Errorf("got %q, want %q", got, "edited.png")
	}
}

func TestDoWithResult_ZeroValueOnFailure(t *testing.T) {
	e := retry.New(noSleep())

	got, err := retry.DoWithResult(context.Background(), e, func(_ context.Context) (int, error) {
		return 42, retouch.ErrRateLimited
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got != 0 {
		t.Errorf("got %d, want zero value on failure", got)
	}
}

func TestWithMaxAttempts_ClampsToOne(t *testing.T) {
	e := retry.New(noSleep(), retry.WithMaxAttempts(0))

	calls := 0
	_ = e.Do(context.Background(), func(_ context.Context) error {
		calls++
		return retouch.ErrRateLimited
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
