package async

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vincentventalon/docuprocess/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
}

func TestSafeGo_RunsFunction(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), testLogger(), time.Second, "test task", func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Task did not run")
	}
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	var after atomic.Bool
	done := make(chan struct{})

	SafeGo(context.Background(), testLogger(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Task did not run")
	}

	// Another task still runs after a panic
	done2 := make(chan struct{})
	SafeGo(context.Background(), testLogger(), time.Second, "follow-up task", func(ctx context.Context) error {
		after.Store(true)
		close(done2)
		return nil
	})

	select {
	case <-done2:
	case <-time.After(2 * time.Second):
		t.Fatal("Follow-up task did not run")
	}
	if !after.Load() {
		t.Error("Expected follow-up task to complete")
	}
}

func TestSafeGo_LogsError(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.WarnLevel, &buf)
	done := make(chan struct{})

	SafeGo(context.Background(), logger, time.Second, "failing task", func(ctx context.Context) error {
		defer close(done)
		return errors.New("task error")
	})

	<-done
	// The log write happens after fn returns, give it a moment
	deadline := time.Now().Add(time.Second)
	for buf.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if buf.Len() == 0 {
		t.Error("Expected error to be logged")
	}
}

func TestSafeGo_TimeoutContext(t *testing.T) {
	done := make(chan error, 1)

	SafeGo(context.Background(), testLogger(), 50*time.Millisecond, "slow task", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			done <- ctx.Err()
		case <-time.After(2 * time.Second):
			done <- nil
		}
		return nil
	})

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected context deadline to fire")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Task did not observe timeout")
	}
}

func TestSafeGoDetached_SurvivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan bool, 1)
	SafeGoDetached(parent, testLogger(), time.Second, "detached task", func(ctx context.Context) error {
		done <- ctx.Err() == nil
		return nil
	})

	select {
	case alive := <-done:
		if !alive {
			t.Error("Expected detached context to survive parent cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Detached task did not run")
	}
}
