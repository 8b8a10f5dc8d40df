package observable

import (
	"context"
	"sync"
)

// Observable is a read-only view of a value that changes over time.
type Observable[T any] interface {
	// Get returns the current value.
	Get() T
	// Subscribe returns a channel receiving the current value immediately and then every change.
	// Slow readers only see the latest value; writers never block on them.
	// The channel is closed when ctx is done.
	Subscribe(ctx context.Context) <-chan T
	// OnChange registers fn to run synchronously after every change and returns its unregister func.
	OnChange(fn func()) func()
}

// Value is a mutable observable value. All methods are safe for concurrent use.
type Value[T any] struct {
	// mu guards every field below.
	mu sync.RWMutex
	// value is the current value.
	value T
	// nextID numbers subscribers and listeners.
	nextID uint64
	// subscribers receive the latest value.
	subscribers map[uint64]chan T
	// listeners are called after each change.
	listeners map[uint64]func()
	// notifyMu serializes listener calls so they observe changes in order.
	notifyMu sync.Mutex
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		value:       initial,
		subscribers: make(map[uint64]chan T),
		listeners:   make(map[uint64]func()),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.value
}

// Set replaces the current value and notifies observers.
func (v *Value[T]) Set(value T) {
	v.Update(func(T) T { return value })
}

// Update atomically replaces the current value with fn(current) and notifies observers.
// fn must not call methods of v.
func (v *Value[T]) Update(fn func(current T) T) T {
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()

	v.mu.Lock()

	v.value = fn(v.value)
	updated := v.value

	for _, ch := range v.subscribers {
		offerLatest(ch, updated)
	}

	listeners := make([]func(), 0, len(v.listeners))
	for _, listener := range v.listeners {
		listeners = append(listeners, listener)
	}

	v.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}

	return updated
}

// Subscribe returns a channel receiving the current value immediately and then every change.
func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	v.mu.Lock()

	id := v.nextID
	v.nextID++

	ch <- v.value
	v.subscribers[id] = ch

	v.mu.Unlock()

	go func() {
		<-ctx.Done()

		v.mu.Lock()
		delete(v.subscribers, id)
		close(ch)
		v.mu.Unlock()
	}()

	return ch
}

// OnChange registers fn to run synchronously after every change and returns its unregister func.
func (v *Value[T]) OnChange(fn func()) func() {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++

	v.listeners[id] = fn

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()

		delete(v.listeners, id)
	}
}

// subscriberCount returns the number of live subscriptions.
func (v *Value[T]) subscriberCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return len(v.subscribers)
}

// offerLatest puts value into a one-slot channel, replacing a value nobody has read yet.
func offerLatest[T any](ch chan T, value T) {
	select {
	case ch <- value:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- value:
	default:
	}
}

// CombineLatest derives an observable from the latest values of a and b.
// The result is recomputed synchronously whenever either source changes.
func CombineLatest[A, B, R any](a Observable[A], b Observable[B], combine func(A, B) R) Observable[R] {
	derived := NewValue(combine(a.Get(), b.Get()))

	var mu sync.Mutex

	recompute := func() {
		mu.Lock()
		defer mu.Unlock()

		// Both sources are read inside the lock so the last recompute always sees the latest pair.
		derived.Set(combine(a.Get(), b.Get()))
	}

	a.OnChange(recompute)
	b.OnChange(recompute)

	return derived
}
