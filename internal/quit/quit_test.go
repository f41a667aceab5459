package quit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSignalIdempotent(t *testing.T) {
	t.Parallel()
	b := NewBus()
	if b.Signaled() {
		t.Fatal("new bus must not be signaled")
	}
	b.Signal()
	b.Signal() // second call must be a no-op, not a panic
	if !b.Signaled() {
		t.Fatal("bus should be signaled")
	}
}

func TestLateSubscriberObservesSignal(t *testing.T) {
	t.Parallel()
	b := NewBus()
	b.Signal()

	// A receiver created after Signal must still see it immediately.
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not observe the signal")
	}
}

func TestOnError(t *testing.T) {
	t.Parallel()
	b := NewBus()

	if err := b.OnError(nil); err != nil {
		t.Fatalf("OnError(nil) = %v", err)
	}
	if b.Signaled() {
		t.Fatal("nil error must not signal the bus")
	}

	sentinel := errors.New("bind failed")
	if err := b.OnError(sentinel); !errors.Is(err, sentinel) {
		t.Fatalf("OnError must return the error unchanged, got %v", err)
	}
	if !b.Signaled() {
		t.Fatal("non-nil error must signal the bus")
	}
}

func TestContextCanceledOnSignal(t *testing.T) {
	t.Parallel()
	b := NewBus()

	ctx, cancel := b.Context(context.Background())
	defer cancel()
	select {
	case <-ctx.Done():
		t.Fatal("context must stay live before signal")
	default:
	}

	b.Signal()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled after signal")
	}
}

func TestContextCancelReleasesWatcher(t *testing.T) {
	t.Parallel()
	b := NewBus()

	ctx, cancel := b.Context(context.Background())
	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("cancel must end the derived context")
	}
	if b.Signaled() {
		t.Fatal("canceling the derived context must not signal the bus")
	}
}
