// Package dispatch provides a small multi-subscriber callback registry.
// Each inbound event class on the realtime connection gets its own Feed so
// independent UI surfaces can listen without coordinating with each other.
package dispatch

import (
	"sync"
	"unsafe"
)

// Feed fans one event class out to a set of subscribers. Subscribers are
// keyed by function value identity, so registering the same func value
// twice does not double deliveries, while distinct closures built from
// the same literal stay independent subscribers.
type Feed[T any] struct {
	mu   sync.RWMutex
	subs map[uintptr]func(T)
}

// NewFeed creates an empty feed
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{
		subs: make(map[uintptr]func(T)),
	}
}

// On registers a callback and returns its disposer. Calling the disposer
// more than once is safe.
func (f *Feed[T]) On(fn func(T)) func() {
	key := funcKey(fn)

	f.mu.Lock()
	f.subs[key] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, key)
		f.mu.Unlock()
	}
}

// Emit invokes every currently registered callback with the value.
// Delivery order is unspecified. The subscriber set is snapshotted first,
// so unsubscribing mid-dispatch does not affect the current cycle, and a
// panicking callback does not stop delivery to the rest.
func (f *Feed[T]) Emit(v T) {
	f.mu.RLock()
	snapshot := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		snapshot = append(snapshot, fn)
	}
	f.mu.RUnlock()

	for _, fn := range snapshot {
		invoke(fn, v)
	}
}

// Len returns the number of registered callbacks
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// funcKey returns the func value's data word: the pointer to its funcval.
// Unlike reflect's Pointer, which yields the shared code pointer, this
// distinguishes closures created from the same literal while keeping one
// key per func value.
func funcKey[T any](fn func(T)) uintptr {
	return *(*uintptr)(unsafe.Pointer(&fn))
}

// invoke isolates a single callback so its panic cannot break the caller
func invoke[T any](fn func(T), v T) {
	defer func() {
		_ = recover()
	}()
	fn(v)
}
