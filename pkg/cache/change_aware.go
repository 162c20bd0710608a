package cache

import (
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
)

// ChangeAwareCache is a keyed cache that records every delta applied to it.
// CaptureChanges drains the accumulated deltas as a change set, so an
// operator can mutate the cache freely during a reaction and emit the net
// effect afterwards.
//
// Like Cache it is not safe for concurrent use; the owning operator's lock
// guards it
type ChangeAwareCache[T any, K comparable] struct {
	inner  *Cache[T, K]
	buffer []changeset.Change[T, K]
}

// NewChangeAware creates an empty change-aware cache
func NewChangeAware[T any, K comparable]() *ChangeAwareCache[T, K] {
	return &ChangeAwareCache[T, K]{inner: New[T, K]()}
}

// Lookup returns the value for a key without mutating anything
func (c *ChangeAwareCache[T, K]) Lookup(key K) optional.Optional[T] {
	return c.inner.Lookup(key)
}

// Contains reports whether the key is present
func (c *ChangeAwareCache[T, K]) Contains(key K) bool {
	return c.inner.Contains(key)
}

// AddOrUpdate writes the mapping and records Add for a new key or Update,
// carrying the prior value, for an existing one
func (c *ChangeAwareCache[T, K]) AddOrUpdate(value T, key K) {
	if prev, exists := c.inner.Lookup(key).Value(); exists {
		c.buffer = append(c.buffer, changeset.NewUpdate(key, value, prev))
	} else {
		c.buffer = append(c.buffer, changeset.NewChange(changeset.Add, key, value))
	}
	c.inner.AddOrUpdate(value, key)
}

// Remove deletes the key and records Remove with the removed value.
// Removing an absent key is a no-op and records nothing
func (c *ChangeAwareCache[T, K]) Remove(key K) {
	prev, exists := c.inner.Lookup(key).Value()
	if !exists {
		return
	}
	c.inner.Remove(key)
	c.buffer = append(c.buffer, changeset.NewChange(changeset.Remove, key, prev))
}

// Refresh records Refresh for a present key without touching storage.
// Refreshing an absent key is a no-op
func (c *ChangeAwareCache[T, K]) Refresh(key K) {
	value, exists := c.inner.Lookup(key).Value()
	if !exists {
		return
	}
	c.buffer = append(c.buffer, changeset.NewChange(changeset.Refresh, key, value))
}

// Clear removes all entries, recording a Remove per entry in iteration order
func (c *ChangeAwareCache[T, K]) Clear() {
	c.inner.ForEach(func(key K, value T) bool {
		c.buffer = append(c.buffer, changeset.NewChange(changeset.Remove, key, value))
		return true
	})
	c.inner.Clear()
}

// Clone applies an external change set to internal state without recording
// anything; the upstream deltas are already what the operator forwards
func (c *ChangeAwareCache[T, K]) Clone(cs changeset.ChangeSet[T, K]) {
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.Add, changeset.Update:
			c.inner.AddOrUpdate(change.Current, change.Key)
		case changeset.Remove:
			c.inner.Remove(change.Key)
		}
	}
}

// CaptureChanges atomically drains the buffered deltas. It returns the empty
// sentinel when nothing was recorded; callers must not emit empty sets
// downstream
func (c *ChangeAwareCache[T, K]) CaptureChanges() changeset.ChangeSet[T, K] {
	if len(c.buffer) == 0 {
		return changeset.Empty[T, K]()
	}
	captured := c.buffer
	c.buffer = nil
	return changeset.New(captured)
}

// Len returns the number of entries
func (c *ChangeAwareCache[T, K]) Len() int {
	return c.inner.Len()
}

// Keys returns the keys in iteration order
func (c *ChangeAwareCache[T, K]) Keys() []K {
	return c.inner.Keys()
}

// Items returns the values in iteration order
func (c *ChangeAwareCache[T, K]) Items() []T {
	return c.inner.Items()
}

// ForEach visits each key-value pair in iteration order until the visitor
// returns false
func (c *ChangeAwareCache[T, K]) ForEach(visit func(key K, value T) bool) {
	c.inner.ForEach(visit)
}
