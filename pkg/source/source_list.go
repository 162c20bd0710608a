package source

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// SourceList is a mutable ordered collection that publishes its changes as
// list change sets. All mutation goes through Edit, which batches any
// number of operations into a single transactional change set.
//
// Emission is synchronous on the editing goroutine, like SourceCache
type SourceList[T any] struct {
	mu          sync.Mutex
	items       []T
	buffer      []changeset.ListChange[T]
	subscribers map[uint64]stream.Observer[changeset.ListChangeSet[T]]
	nextID      uint64
	disposed    bool
}

// NewSourceList creates an empty ordered source
func NewSourceList[T any]() *SourceList[T] {
	return &SourceList[T]{
		subscribers: make(map[uint64]stream.Observer[changeset.ListChangeSet[T]]),
	}
}

// Edit runs a transactional batch of mutations and publishes the
// accumulated deltas as one list change set
func (s *SourceList[T]) Edit(fn func(u *ListUpdater[T])) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrSourceDisposed
	}

	fn(&ListUpdater[T]{source: s})

	if len(s.buffer) == 0 {
		return nil
	}
	cs := changeset.NewList(s.buffer)
	s.buffer = nil
	for _, observer := range s.snapshotListLocked() {
		observer.OnNext(cs)
	}
	return nil
}

// snapshotListLocked copies the subscriber list in registration order.
// Callers hold s.mu
func (s *SourceList[T]) snapshotListLocked() []stream.Observer[changeset.ListChangeSet[T]] {
	ids := make([]uint64, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	observers := make([]stream.Observer[changeset.ListChangeSet[T]], 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.subscribers[id])
	}
	return observers
}

// Connect returns the list change-set stream of this source. A new
// subscriber first receives the current items as one AddRange, then every
// subsequent transactional change set
func (s *SourceList[T]) Connect() stream.Observable[changeset.ListChangeSet[T]] {
	return stream.Create(func(observer stream.Observer[changeset.ListChangeSet[T]]) stream.Disposable {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			observer.OnComplete()
			return stream.Nop()
		}

		id := s.nextID
		s.nextID++
		s.subscribers[id] = observer

		if len(s.items) > 0 {
			initial := make([]T, len(s.items))
			copy(initial, s.items)
			observer.OnNext(changeset.NewList([]changeset.ListChange[T]{
				changeset.NewListRange(changeset.ListAddRange, initial, 0),
			}))
		}
		s.mu.Unlock()

		return stream.NewDisposable(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	})
}

// Items returns a copy of the current items
func (s *SourceList[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]T, len(s.items))
	copy(items, s.items)
	return items
}

// Count returns the number of items
func (s *SourceList[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dispose completes every subscriber and rejects further edits. Disposing
// twice is a no-op
func (s *SourceList[T]) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	observers := s.snapshotListLocked()
	s.subscribers = make(map[uint64]stream.Observer[changeset.ListChangeSet[T]])
	s.mu.Unlock()

	for _, observer := range observers {
		observer.OnComplete()
	}
}

// ListUpdater is the mutation surface handed to Edit callbacks. It is only
// valid for the duration of the callback
type ListUpdater[T any] struct {
	source *SourceList[T]
}

// Add appends an item
func (u *ListUpdater[T]) Add(item T) {
	s := u.source
	s.items = append(s.items, item)
	s.buffer = append(s.buffer, changeset.NewListChange(changeset.ListAdd, item, len(s.items)-1))
}

// AddRange appends a block of items
func (u *ListUpdater[T]) AddRange(items []T) {
	if len(items) == 0 {
		return
	}
	s := u.source
	index := len(s.items)
	block := make([]T, len(items))
	copy(block, items)
	s.items = append(s.items, block...)
	s.buffer = append(s.buffer, changeset.NewListRange(changeset.ListAddRange, block, index))
}

// Insert places an item at the given index
func (u *ListUpdater[T]) Insert(index int, item T) error {
	s := u.source
	if index < 0 || index > len(s.items) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(s.items))
	}
	s.items = append(s.items, item)
	copy(s.items[index+1:], s.items[index:])
	s.items[index] = item
	s.buffer = append(s.buffer, changeset.NewListChange(changeset.ListAdd, item, index))
	return nil
}

// Remove removes the first occurrence of an item, matched structurally, and
// reports whether one was found
func (u *ListUpdater[T]) Remove(item T) bool {
	s := u.source
	for i, candidate := range s.items {
		if reflect.DeepEqual(candidate, item) {
			u.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveAt removes the item at the given index
func (u *ListUpdater[T]) RemoveAt(index int) error {
	s := u.source
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("remove index %d out of range [0,%d)", index, len(s.items))
	}
	u.removeAt(index)
	return nil
}

// removeAt removes a known-valid index and records the change
func (u *ListUpdater[T]) removeAt(index int) {
	s := u.source
	item := s.items[index]
	s.items = append(s.items[:index], s.items[index+1:]...)
	s.buffer = append(s.buffer, changeset.NewListChange(changeset.ListRemove, item, index))
}

// RemoveRange removes count items starting at index
func (u *ListUpdater[T]) RemoveRange(index, count int) error {
	s := u.source
	if index < 0 || count < 0 || index+count > len(s.items) {
		return fmt.Errorf("remove range [%d,%d) out of range [0,%d)", index, index+count, len(s.items))
	}
	if count == 0 {
		return nil
	}
	block := make([]T, count)
	copy(block, s.items[index:index+count])
	s.items = append(s.items[:index], s.items[index+count:]...)
	s.buffer = append(s.buffer, changeset.NewListRange(changeset.ListRemoveRange, block, index))
	return nil
}

// Replace swaps the item at the given index
func (u *ListUpdater[T]) Replace(index int, item T) error {
	s := u.source
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("replace index %d out of range [0,%d)", index, len(s.items))
	}
	previous := s.items[index]
	s.items[index] = item
	s.buffer = append(s.buffer, changeset.NewListReplace(item, previous, index))
	return nil
}

// Move relocates the item at from to position to
func (u *ListUpdater[T]) Move(from, to int) error {
	s := u.source
	if from < 0 || from >= len(s.items) || to < 0 || to >= len(s.items) {
		return fmt.Errorf("move %d -> %d out of range [0,%d)", from, to, len(s.items))
	}
	if from == to {
		return nil
	}
	item := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items, item)
	copy(s.items[to+1:], s.items[to:len(s.items)-1])
	s.items[to] = item
	s.buffer = append(s.buffer, changeset.NewListMoved(item, to, from))
	return nil
}

// Clear removes every item as a single change
func (u *ListUpdater[T]) Clear() {
	s := u.source
	if len(s.items) == 0 {
		return
	}
	block := s.items
	s.items = nil
	s.buffer = append(s.buffer, changeset.NewListRange(changeset.ListClear, block, 0))
}

// Items returns the staged items. Callers must not mutate the slice
func (u *ListUpdater[T]) Items() []T {
	return u.source.items
}

// Count returns the number of staged items
func (u *ListUpdater[T]) Count() int {
	return len(u.source.items)
}
