package cache

import (
	"github.com/mnohosten/laura-flow/pkg/optional"
)

// Grouping is an immutable snapshot of a keyed sub-cache together with its
// group key. Operators hand groupings downstream instead of live caches so
// consumers can never observe a mutation
type Grouping[T any, K comparable, G comparable] struct {
	key   G
	keys  []K
	items map[K]T
}

// NewGrouping snapshots the given pairs under a group key. Pairs are copied
// in the order given, which callers derive from cache iteration order
func NewGrouping[T any, K comparable, G comparable](key G, keys []K, items map[K]T) *Grouping[T, K, G] {
	copiedKeys := make([]K, len(keys))
	copy(copiedKeys, keys)
	copiedItems := make(map[K]T, len(items))
	for k, v := range items {
		copiedItems[k] = v
	}
	return &Grouping[T, K, G]{key: key, keys: copiedKeys, items: copiedItems}
}

// EmptyGrouping returns a grouping with no members
func EmptyGrouping[T any, K comparable, G comparable](key G) *Grouping[T, K, G] {
	return &Grouping[T, K, G]{key: key, items: make(map[K]T)}
}

// GroupingOf snapshots a cache under a group key
func GroupingOf[T any, K comparable, G comparable](key G, c *Cache[T, K]) *Grouping[T, K, G] {
	g := &Grouping[T, K, G]{key: key, items: make(map[K]T, c.Len())}
	c.ForEach(func(k K, v T) bool {
		g.keys = append(g.keys, k)
		g.items[k] = v
		return true
	})
	return g
}

// Key returns the group key
func (g *Grouping[T, K, G]) Key() G {
	return g.key
}

// Lookup returns the member for a key, or an absent Optional when missing
func (g *Grouping[T, K, G]) Lookup(key K) optional.Optional[T] {
	if v, ok := g.items[key]; ok {
		return optional.Some(v)
	}
	return optional.None[T]()
}

// Keys returns the member keys in snapshot order
func (g *Grouping[T, K, G]) Keys() []K {
	keys := make([]K, len(g.keys))
	copy(keys, g.keys)
	return keys
}

// Items returns the member values in snapshot order
func (g *Grouping[T, K, G]) Items() []T {
	items := make([]T, 0, len(g.keys))
	for _, k := range g.keys {
		items = append(items, g.items[k])
	}
	return items
}

// Count returns the number of members
func (g *Grouping[T, K, G]) Count() int {
	return len(g.keys)
}
