package quit

import (
	"context"
	"sync"
)

// Bus broadcasts a single quit event to any number of subscribers.
// The zero value is not usable; call NewBus.
type Bus struct {
	once sync.Once
	done chan struct{}
}

func NewBus() *Bus {
	return &Bus{done: make(chan struct{})}
}

// Signal requests a full-system shutdown. Idempotent, never blocks,
// safe from any goroutine including error paths.
func (b *Bus) Signal() {
	b.once.Do(func() { close(b.done) })
}

// Done returns a channel closed once shutdown has been requested.
// Receivers created after Signal observe the closed channel immediately.
func (b *Bus) Done() <-chan struct{} { return b.done }

// Signaled is the non-blocking poll used by blocking loops that cannot
// select on Done (the TUI tick).
func (b *Bus) Signaled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Context derives a context canceled when either the parent is done or
// the bus is signaled. Callers must call cancel to release the watcher.
func (b *Bus) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// OnError signals the bus when err is non-nil and returns err unchanged.
// This is how a local failure in one task becomes a shutdown request for
// every other task, without the failing task knowing about them.
func (b *Bus) OnError(err error) error {
	if err != nil {
		b.Signal()
	}
	return err
}
