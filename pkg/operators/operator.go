// Package operators contains change-set operators. Every operator follows
// the same skeleton: on subscribe it creates its own lock, mirror caches and
// a result change-aware cache; each upstream change set mutates state under
// the lock; the net effect is captured and forwarded when non-empty; an
// upstream or selector error tears the operator down exactly once.
package operators

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/stream"
)

// gate guards a downstream observer. It delivers at most one terminal
// signal and nothing after it. Callers invoke it from serialized reactions
type gate[T any] struct {
	observer stream.Observer[T]
	done     bool
}

// next forwards a value unless the gate is closed
func (g *gate[T]) next(value T) {
	if g.done {
		return
	}
	g.observer.OnNext(value)
}

// fail closes the gate and forwards the error once
func (g *gate[T]) fail(err error) {
	if g.done {
		return
	}
	g.done = true
	g.observer.OnError(err)
}

// complete closes the gate and forwards completion once
func (g *gate[T]) complete() {
	if g.done {
		return
	}
	g.done = true
	g.observer.OnComplete()
}

// close silences the gate without a terminal signal. Disposal uses it to
// stop emissions while upstream subscriptions unwind
func (g *gate[T]) close() {
	g.done = true
}

// dispatcher serializes operator reactions. Reactions arriving while one is
// running, including reactions triggered by the running one (a freshly
// subscribed inner source emitting its initial change set), queue up and run
// afterwards on the goroutine that started the chain. At most one reaction
// runs at any time, so operator state needs no further locking
type dispatcher struct {
	mu    sync.Mutex
	queue []func()
	busy  bool
}

// enqueue schedules a reaction, draining the queue if no drain is active
func (d *dispatcher) enqueue(reaction func()) {
	d.mu.Lock()
	d.queue = append(d.queue, reaction)
	if d.busy {
		d.mu.Unlock()
		return
	}
	d.busy = true
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		next()
		d.mu.Lock()
	}
	d.busy = false
	d.mu.Unlock()
}

// through adapts an observer so that every delivery runs as a serialized
// reaction on the dispatcher
func through[T any](d *dispatcher, observer stream.Observer[T]) stream.Observer[T] {
	return stream.NewObserver(
		func(value T) { d.enqueue(func() { observer.OnNext(value) }) },
		func(err error) { d.enqueue(func() { observer.OnError(err) }) },
		func() { d.enqueue(observer.OnComplete) },
	)
}
