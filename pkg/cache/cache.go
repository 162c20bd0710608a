package cache

import (
	"container/list"

	"github.com/mnohosten/laura-flow/pkg/optional"
)

// entry is a key-value pair held in the iteration order list
type entry[T any, K comparable] struct {
	key   K
	value T
}

// Cache is an in-memory keyed store. Keys are unique and iteration order
// equals the insertion order of still-present keys. Updating an existing
// key keeps its position.
//
// Cache is not safe for concurrent use; every operator owns its caches
// exclusively and guards them with its own lock
type Cache[T any, K comparable] struct {
	items   map[K]*list.Element
	ordered *list.List
}

// New creates an empty cache
func New[T any, K comparable]() *Cache[T, K] {
	return &Cache[T, K]{
		items:   make(map[K]*list.Element),
		ordered: list.New(),
	}
}

// Lookup returns the value for a key, or an absent Optional when missing.
// Lookup never mutates the cache
func (c *Cache[T, K]) Lookup(key K) optional.Optional[T] {
	elem, exists := c.items[key]
	if !exists {
		return optional.None[T]()
	}
	return optional.Some(elem.Value.(*entry[T, K]).value)
}

// Contains reports whether the key is present
func (c *Cache[T, K]) Contains(key K) bool {
	_, exists := c.items[key]
	return exists
}

// AddOrUpdate writes the mapping for a key. An existing key keeps its
// iteration position; a new key is appended
func (c *Cache[T, K]) AddOrUpdate(value T, key K) {
	if elem, exists := c.items[key]; exists {
		elem.Value.(*entry[T, K]).value = value
		return
	}
	c.items[key] = c.ordered.PushBack(&entry[T, K]{key: key, value: value})
}

// Remove deletes the key if present and reports whether it was
func (c *Cache[T, K]) Remove(key K) bool {
	elem, exists := c.items[key]
	if !exists {
		return false
	}
	c.ordered.Remove(elem)
	delete(c.items, key)
	return true
}

// Clear removes all entries
func (c *Cache[T, K]) Clear() {
	c.items = make(map[K]*list.Element)
	c.ordered = list.New()
}

// Len returns the number of entries
func (c *Cache[T, K]) Len() int {
	return len(c.items)
}

// Keys returns the keys in iteration order
func (c *Cache[T, K]) Keys() []K {
	keys := make([]K, 0, len(c.items))
	for elem := c.ordered.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[T, K]).key)
	}
	return keys
}

// Items returns the values in iteration order
func (c *Cache[T, K]) Items() []T {
	items := make([]T, 0, len(c.items))
	for elem := c.ordered.Front(); elem != nil; elem = elem.Next() {
		items = append(items, elem.Value.(*entry[T, K]).value)
	}
	return items
}

// ForEach visits each key-value pair in iteration order until the visitor
// returns false
func (c *Cache[T, K]) ForEach(visit func(key K, value T) bool) {
	for elem := c.ordered.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry[T, K])
		if !visit(e.key, e.value) {
			return
		}
	}
}
