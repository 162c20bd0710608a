package view

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// ViewCache materializes a keyed change-set stream into a readable keyed
// collection. Reads are safe from any goroutine; the view mutates only on
// the delivering goroutine of its upstream
type ViewCache[T any, K comparable] struct {
	mu           sync.RWMutex
	state        *cache.Cache[T, K]
	err          error
	completed    bool
	subscription stream.Disposable
}

// NewViewCache subscribes to the stream and maintains the materialized state
func NewViewCache[T any, K comparable](src stream.Observable[changeset.ChangeSet[T, K]]) (*ViewCache[T, K], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	v := &ViewCache[T, K]{state: cache.New[T, K]()}
	v.subscription = src.Subscribe(stream.NewObserver(
		v.apply,
		func(err error) {
			v.mu.Lock()
			v.err = err
			v.mu.Unlock()
		},
		func() {
			v.mu.Lock()
			v.completed = true
			v.mu.Unlock()
		},
	))
	return v, nil
}

// apply folds one change set into the materialized state
func (v *ViewCache[T, K]) apply(cs changeset.ChangeSet[T, K]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.Add, changeset.Update:
			v.state.AddOrUpdate(change.Current, change.Key)
		case changeset.Remove:
			v.state.Remove(change.Key)
		}
	}
}

// Lookup returns the value for a key, or an absent Optional when missing
func (v *ViewCache[T, K]) Lookup(key K) optional.Optional[T] {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Lookup(key)
}

// Count returns the number of materialized items
func (v *ViewCache[T, K]) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Len()
}

// Keys returns the keys in insertion order
func (v *ViewCache[T, K]) Keys() []K {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Keys()
}

// Items returns the values in insertion order
func (v *ViewCache[T, K]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Items()
}

// Err returns the terminal error of the upstream, if any
func (v *ViewCache[T, K]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Completed reports whether the upstream completed normally
func (v *ViewCache[T, K]) Completed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.completed
}

// Dispose detaches from the upstream. The materialized state remains
// readable. Disposing twice is a no-op
func (v *ViewCache[T, K]) Dispose() {
	v.subscription.Dispose()
}
