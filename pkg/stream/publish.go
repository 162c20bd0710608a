package stream

import (
	"sync"
)

// Connectable is a shared publication of one upstream. Subscribers register
// without triggering an upstream subscription; Connect establishes exactly
// one upstream subscription and fans every emission out to all current
// subscribers. Disposing the connection releases the upstream exactly once
type Connectable[T any] struct {
	source Observable[T]

	mu          sync.Mutex
	subscribers map[uint64]Observer[T]
	nextID      uint64
	connection  Disposable
	terminated  bool
	terminalErr error
}

// Publish creates a shared publication over the source
func Publish[T any](source Observable[T]) *Connectable[T] {
	return &Connectable[T]{
		source:      source,
		subscribers: make(map[uint64]Observer[T]),
	}
}

// Subscribe registers an observer with the publication. Observers registered
// after termination receive the terminal signal immediately
func (c *Connectable[T]) Subscribe(observer Observer[T]) Disposable {
	c.mu.Lock()
	if c.terminated {
		err := c.terminalErr
		c.mu.Unlock()
		if err != nil {
			observer.OnError(err)
		} else {
			observer.OnComplete()
		}
		return Nop()
	}
	id := c.nextID
	c.nextID++
	c.subscribers[id] = observer
	c.mu.Unlock()

	return NewDisposable(func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	})
}

// Connect subscribes to the upstream once. The returned disposable releases
// the upstream subscription; calling Connect while connected returns a
// disposable for the existing connection
func (c *Connectable[T]) Connect() Disposable {
	c.mu.Lock()
	if c.connection != nil {
		c.mu.Unlock()
		return NewDisposable(c.disconnect)
	}
	// Reserve the slot before subscribing so a synchronous emission from the
	// source does not re-enter Connect
	c.connection = Nop()
	c.mu.Unlock()

	upstream := c.source.Subscribe(NewObserver(c.fanOutNext, c.fanOutError, c.fanOutComplete))

	c.mu.Lock()
	if c.connection == nil {
		// Disconnected while the upstream subscription was being set up
		c.mu.Unlock()
		upstream.Dispose()
		return Nop()
	}
	c.connection = upstream
	c.mu.Unlock()

	return NewDisposable(c.disconnect)
}

// disconnect releases the upstream subscription if one is active
func (c *Connectable[T]) disconnect() {
	c.mu.Lock()
	conn := c.connection
	c.connection = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Dispose()
	}
}

// snapshot copies the current subscriber list so emissions run outside the
// registration lock
func (c *Connectable[T]) snapshot() []Observer[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	observers := make([]Observer[T], 0, len(c.subscribers))
	for _, o := range c.subscribers {
		observers = append(observers, o)
	}
	return observers
}

func (c *Connectable[T]) fanOutNext(value T) {
	for _, o := range c.snapshot() {
		o.OnNext(value)
	}
}

func (c *Connectable[T]) fanOutError(err error) {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	c.terminalErr = err
	observers := make([]Observer[T], 0, len(c.subscribers))
	for _, o := range c.subscribers {
		observers = append(observers, o)
	}
	c.subscribers = make(map[uint64]Observer[T])
	c.mu.Unlock()
	for _, o := range observers {
		o.OnError(err)
	}
}

func (c *Connectable[T]) fanOutComplete() {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return
	}
	c.terminated = true
	observers := make([]Observer[T], 0, len(c.subscribers))
	for _, o := range c.subscribers {
		observers = append(observers, o)
	}
	c.subscribers = make(map[uint64]Observer[T])
	c.mu.Unlock()
	for _, o := range observers {
		o.OnComplete()
	}
}

// RefCount returns an observable that connects the publication when the
// first subscriber arrives and disconnects when the last one leaves
func (c *Connectable[T]) RefCount() Observable[T] {
	var (
		mu         sync.Mutex
		count      int
		connection Disposable
	)
	return Create(func(observer Observer[T]) Disposable {
		inner := c.Subscribe(observer)

		mu.Lock()
		count++
		if count == 1 {
			connection = c.Connect()
		}
		mu.Unlock()

		return NewDisposable(func() {
			inner.Dispose()
			mu.Lock()
			count--
			release := count == 0
			conn := connection
			if release {
				connection = nil
			}
			mu.Unlock()
			if release && conn != nil {
				conn.Dispose()
			}
		})
	})
}
