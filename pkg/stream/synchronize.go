package stream

import (
	"sync"
)

// synchronized funnels every delivery to the downstream observer through a
// shared mutex
type synchronized[T any] struct {
	source Observable[T]
	mu     *sync.Mutex
}

// Synchronize decorates a source so that all emissions are delivered under
// the given mutex. Multi-source operators synchronize every upstream on one
// shared lock before subscribing, so their reactions observe a total order
func Synchronize[T any](source Observable[T], mu *sync.Mutex) Observable[T] {
	return &synchronized[T]{source: source, mu: mu}
}

// Subscribe subscribes to the source with a lock-holding observer
func (s *synchronized[T]) Subscribe(observer Observer[T]) Disposable {
	return s.source.Subscribe(&synchronizedObserver[T]{inner: observer, mu: s.mu})
}

// synchronizedObserver holds the mutex across each observer call
type synchronizedObserver[T any] struct {
	inner Observer[T]
	mu    *sync.Mutex
}

// OnNext delivers the value under the lock
func (o *synchronizedObserver[T]) OnNext(value T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inner.OnNext(value)
}

// OnError delivers the error under the lock
func (o *synchronizedObserver[T]) OnError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inner.OnError(err)
}

// OnComplete delivers completion under the lock
func (o *synchronizedObserver[T]) OnComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inner.OnComplete()
}
