package readiness

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTrackerAllReady(t *testing.T) {
	tr := New(3)
	tr.MarkReady(0)
	tr.MarkReady(1)
	tr.MarkReady(1)
	if tr.AllReady() {
		t.Fatal("AllReady() = true with 2 of 3 nodes ready")
	}
	if got := tr.Ready(); got != 2 {
		t.Errorf("Ready() = %d, want 2", got)
	}
	tr.MarkReady(2)
	if !tr.AllReady() {
		t.Fatal("AllReady() = false with every node ready")
	}
}

func TestTrackerWait(t *testing.T) {
	tr := New(2)
	done := make(chan error)
	go func() {
		done <- tr.Wait(context.Background())
	}()

	tr.MarkReady(0)
	select {
	case <-done:
		t.Fatal("Wait returned before every node was ready")
	case <-time.After(10 * time.Millisecond):
	}

	tr.MarkReady(1)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after every node was ready")
	}
}

func TestTrackerWaitCanceled(t *testing.T) {
	tr := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestTrackerEmpty(t *testing.T) {
	if !New(0).AllReady() {
		t.Error("empty network should be ready")
	}
}
