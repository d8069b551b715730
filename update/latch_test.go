package update

import (
	"context"
	"testing"
	"time"
)

func TestLatchSetThenWaitReturnsImmediately(t *testing.T) {
	l := newLatch()
	l.Set()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait after Set: %v", err)
	}
}

func TestLatchWaitBlocksUntilSet(t *testing.T) {
	l := newLatch()
	done := make(chan error, 1)
	go func() { done <- l.Wait(context.Background()) }()

	select {
	case <-done:
		t.Fatal("Wait returned before Set was called")
	case <-time.After(20 * time.Millisecond):
	}

	l.Set()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait after Set: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Set")
	}
}

func TestLatchClearRearms(t *testing.T) {
	l := newLatch()
	l.Set()
	l.Clear()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("Wait returned nil after Clear, want a context deadline error")
	}
}

func TestLatchSetIsIdempotent(t *testing.T) {
	l := newLatch()
	l.Set()
	l.Set() // must not panic (double close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("Wait after double Set: %v", err)
	}
}
