package registry

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrDoesNotExist  = errors.New("does not exist")
	ErrTimeout       = errors.New("timeout")
)

// Registry stores at most one value per type identity.
// All operations are safe for concurrent use; locking is per type
// bucket, so unrelated types never contend.
type Registry struct {
	mu      sync.RWMutex // guards the bucket map, not the values
	buckets map[reflect.Type]*bucket
}

type bucket struct {
	mu      sync.Mutex
	value   any
	present bool
	waiters []chan struct{}
}

func New() *Registry {
	return &Registry{buckets: make(map[reflect.Type]*bucket)}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// bucketFor returns the bucket for key, creating it on first use.
// Buckets are never deleted; a removed entry keeps its (empty) bucket so
// waiters registered against it stay valid.
func (r *Registry) bucketFor(key reflect.Type) *bucket {
	r.mu.RLock()
	b := r.buckets[key]
	r.mu.RUnlock()
	if b != nil {
		return b
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if b = r.buckets[key]; b == nil {
		b = &bucket{}
		r.buckets[key] = b
	}
	return b
}

// wake resolves every pending waiter on the bucket. Each woken waiter
// re-evaluates its own predicate. Callers must hold b.mu.
func (b *bucket) wake() {
	for _, ch := range b.waiters {
		close(ch)
	}
	b.waiters = nil
}

// Contains reports whether a value of type T is currently registered.
func Contains[T any](r *Registry) bool {
	b := r.bucketFor(typeOf[T]())
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.present
}

// Insert stores v under T's identity. It fails with ErrAlreadyExists if
// an entry is already present; it never replaces.
func Insert[T any](r *Registry, v T) error {
	b := r.bucketFor(typeOf[T]())
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.present {
		return ErrAlreadyExists
	}
	b.value = v
	b.present = true
	b.wake()
	return nil
}

// Remove takes the T entry out of the registry, returning ownership of
// the value. Only the task that inserted an entry may remove it.
func Remove[T any](r *Registry) (T, error) {
	b := r.bucketFor(typeOf[T]())
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present {
		var zero T
		return zero, ErrDoesNotExist
	}
	v := b.value.(T)
	b.value = nil
	b.present = false
	b.wake()
	return v, nil
}

// With runs fn against the registered T under the bucket lock.
// fn must not block or call back into the registry.
func With[T any](r *Registry, fn func(T)) error {
	b := r.bucketFor(typeOf[T]())
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present {
		return ErrDoesNotExist
	}
	fn(b.value.(T))
	return nil
}

// WithMut runs fn against a mutable reference to the registered T under
// the bucket lock, storing the (possibly modified) value back.
func WithMut[T any](r *Registry, fn func(*T)) error {
	b := r.bucketFor(typeOf[T]())
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.present {
		return ErrDoesNotExist
	}
	v := b.value.(T)
	fn(&v)
	b.value = v
	return nil
}

// WaitForExistence blocks until a T entry exists, the timeout elapses,
// or ctx is canceled. It returns true only if the entry exists.
func WaitForExistence[T any](ctx context.Context, r *Registry, timeout time.Duration) bool {
	return r.waitFor(ctx, typeOf[T](), timeout, true)
}

// WaitForRemoval blocks until no T entry exists, the timeout elapses,
// or ctx is canceled. It returns true only if the entry is absent.
func WaitForRemoval[T any](ctx context.Context, r *Registry, timeout time.Duration) bool {
	return r.waitFor(ctx, typeOf[T](), timeout, false)
}

// waitFor implements the check-register-recheck protocol: the waiter
// channel is appended under the same lock insert/remove take, so a
// change racing with the initial check is never missed.
func (r *Registry) waitFor(ctx context.Context, key reflect.Type, timeout time.Duration, want bool) bool {
	b := r.bucketFor(key)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.mu.Lock()
		if b.present == want {
			b.mu.Unlock()
			return true
		}
		ch := make(chan struct{})
		b.waiters = append(b.waiters, ch)
		b.mu.Unlock()

		select {
		case <-ch:
			// Woken by a change; loop and re-evaluate.
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// WaitValue copies the registered T out, waiting for it to appear.
//
// Go handles (pools, pointers, channels) are shared references, so the
// copy stays valid even after the owner removes the registry entry:
// removal only prevents new copies from being taken.
func WaitValue[T any](ctx context.Context, r *Registry, timeout time.Duration) (T, error) {
	var v T
	for {
		err := With(r, func(cur T) { v = cur })
		if err == nil {
			return v, nil
		}
		if !WaitForExistence[T](ctx, r, timeout) {
			var zero T
			return zero, ErrTimeout
		}
	}
}
