package view

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// ViewList materializes an ordered change-set stream into a readable list
type ViewList[T any] struct {
	mu           sync.RWMutex
	items        []T
	err          error
	completed    bool
	subscription stream.Disposable
}

// NewViewList subscribes to the stream and maintains the materialized items
func NewViewList[T any](src stream.Observable[changeset.ListChangeSet[T]]) (*ViewList[T], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	v := &ViewList[T]{}
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

// apply folds one list change set into the materialized items
func (v *ViewList[T]) apply(cs changeset.ListChangeSet[T]) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.ListAdd:
			v.insert(change.Item.CurrentIndex, change.Item.Current)
		case changeset.ListAddRange:
			v.insertRange(change.Range.Index, change.Range.Items)
		case changeset.ListRemove:
			v.removeAt(change.Item.CurrentIndex)
		case changeset.ListRemoveRange:
			v.removeRange(change.Range.Index, len(change.Range.Items))
		case changeset.ListReplace:
			if change.Item.CurrentIndex >= 0 && change.Item.CurrentIndex < len(v.items) {
				v.items[change.Item.CurrentIndex] = change.Item.Current
			}
		case changeset.ListMoved:
			v.move(change.Item.PreviousIndex, change.Item.CurrentIndex)
		case changeset.ListClear:
			v.items = nil
		}
	}
}

// insert places an item at index, clamping to the valid range
func (v *ViewList[T]) insert(index int, item T) {
	if index < 0 || index > len(v.items) {
		index = len(v.items)
	}
	v.items = append(v.items, item)
	copy(v.items[index+1:], v.items[index:])
	v.items[index] = item
}

// insertRange places a block at index, clamping to the valid range
func (v *ViewList[T]) insertRange(index int, block []T) {
	if index < 0 || index > len(v.items) {
		index = len(v.items)
	}
	expanded := make([]T, 0, len(v.items)+len(block))
	expanded = append(expanded, v.items[:index]...)
	expanded = append(expanded, block...)
	expanded = append(expanded, v.items[index:]...)
	v.items = expanded
}

// removeAt drops the item at index if it is valid
func (v *ViewList[T]) removeAt(index int) {
	if index < 0 || index >= len(v.items) {
		return
	}
	v.items = append(v.items[:index], v.items[index+1:]...)
}

// removeRange drops count items starting at index, clamping the tail
func (v *ViewList[T]) removeRange(index, count int) {
	if index < 0 || index >= len(v.items) || count <= 0 {
		return
	}
	end := index + count
	if end > len(v.items) {
		end = len(v.items)
	}
	v.items = append(v.items[:index], v.items[end:]...)
}

// move relocates an item between valid positions
func (v *ViewList[T]) move(from, to int) {
	if from < 0 || from >= len(v.items) || to < 0 || to >= len(v.items) || from == to {
		return
	}
	item := v.items[from]
	v.items = append(v.items[:from], v.items[from+1:]...)
	v.items = append(v.items, item)
	copy(v.items[to+1:], v.items[to:len(v.items)-1])
	v.items[to] = item
}

// Items returns a copy of the materialized items
func (v *ViewList[T]) Items() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	items := make([]T, len(v.items))
	copy(items, v.items)
	return items
}

// Count returns the number of materialized items
func (v *ViewList[T]) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// Err returns the terminal error of the upstream, if any
func (v *ViewList[T]) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Completed reports whether the upstream completed normally
func (v *ViewList[T]) Completed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.completed
}

// Dispose detaches from the upstream. Disposing twice is a no-op
func (v *ViewList[T]) Dispose() {
	v.subscription.Dispose()
}
