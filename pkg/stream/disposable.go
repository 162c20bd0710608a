package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mnohosten/laura-flow/pkg/concurrent"
)

// Disposable releases resources owned by a subscription. Dispose is
// idempotent: disposing twice has the same effect as disposing once
type Disposable interface {
	Dispose()
}

// disposeFunc runs a function exactly once
type disposeFunc struct {
	fn       func()
	disposed atomic.Bool
}

// NewDisposable wraps a function as an idempotent disposable
func NewDisposable(fn func()) Disposable {
	return &disposeFunc{fn: fn}
}

// Dispose runs the wrapped function on the first call only
func (d *disposeFunc) Dispose() {
	if d.disposed.CompareAndSwap(false, true) {
		if d.fn != nil {
			d.fn()
		}
	}
}

// nopDisposable does nothing
type nopDisposable struct{}

// Dispose does nothing
func (nopDisposable) Dispose() {}

// Nop returns a disposable that does nothing
func Nop() Disposable {
	return nopDisposable{}
}

// CompositeDisposable owns a set of disposables and disposes them in LIFO
// order, so resources unwind in reverse acquisition order. Adding to an
// already disposed composite disposes the newcomer immediately
type CompositeDisposable struct {
	stack    *concurrent.Stack[Disposable]
	disposed atomic.Bool
}

// NewComposite creates a composite disposable holding the given disposables
func NewComposite(disposables ...Disposable) *CompositeDisposable {
	c := &CompositeDisposable{stack: concurrent.NewStack[Disposable]()}
	for _, d := range disposables {
		c.Add(d)
	}
	return c
}

// Add takes ownership of a disposable
func (c *CompositeDisposable) Add(d Disposable) {
	if d == nil {
		return
	}
	if c.disposed.Load() {
		d.Dispose()
		return
	}
	c.stack.Push(d)
	// Disposal may have raced the push; drain again so nothing leaks
	if c.disposed.Load() {
		c.drain()
	}
}

// Dispose disposes all owned disposables in LIFO order
func (c *CompositeDisposable) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}
	c.drain()
}

// drain disposes everything currently held
func (c *CompositeDisposable) drain() {
	for _, d := range c.stack.Drain() {
		d.Dispose()
	}
}

// IsDisposed reports whether Dispose has been called
func (c *CompositeDisposable) IsDisposed() bool {
	return c.disposed.Load()
}

// SerialDisposable holds at most one disposable; setting a new one disposes
// the previous. Disposing the serial disposes the current and everything
// set afterwards
type SerialDisposable struct {
	mu       sync.Mutex
	current  Disposable
	disposed bool
}

// NewSerial creates an empty serial disposable
func NewSerial() *SerialDisposable {
	return &SerialDisposable{}
}

// Set swaps in a new disposable, disposing the previous one. If the serial
// is already disposed the newcomer is disposed immediately
func (s *SerialDisposable) Set(d Disposable) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		if d != nil {
			d.Dispose()
		}
		return
	}
	prev := s.current
	s.current = d
	s.mu.Unlock()
	if prev != nil {
		prev.Dispose()
	}
}

// Dispose disposes the current disposable and marks the serial disposed
func (s *SerialDisposable) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	current := s.current
	s.current = nil
	s.mu.Unlock()
	if current != nil {
		current.Dispose()
	}
}
