package source

import (
	"errors"
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

var (
	// ErrSourceDisposed is returned when editing a disposed source
	ErrSourceDisposed = errors.New("source is disposed")

	// ErrNilKeySelector is returned when constructing a source without a key selector
	ErrNilKeySelector = errors.New("key selector is nil")
)

// SourceCache is a mutable keyed collection that publishes its changes as
// change sets. All mutation goes through Edit, which batches any number of
// operations into a single transactional change set.
//
// Emission is synchronous on the editing goroutine: observers see change
// sets in edit order and must not edit the source from inside a callback
type SourceCache[T any, K comparable] struct {
	keySelector func(T) K

	mu          sync.Mutex
	state       *cache.ChangeAwareCache[T, K]
	subscribers map[uint64]stream.Observer[changeset.ChangeSet[T, K]]
	nextID      uint64
	disposed    bool
}

// NewSourceCache creates a keyed source whose keys are derived from items
// via the key selector
func NewSourceCache[T any, K comparable](keySelector func(T) K) (*SourceCache[T, K], error) {
	if keySelector == nil {
		return nil, ErrNilKeySelector
	}
	return &SourceCache[T, K]{
		keySelector: keySelector,
		state:       cache.NewChangeAware[T, K](),
		subscribers: make(map[uint64]stream.Observer[changeset.ChangeSet[T, K]]),
	}, nil
}

// Edit runs a transactional batch of mutations. The accumulated deltas are
// published as one change set; an edit that changes nothing publishes
// nothing
func (s *SourceCache[T, K]) Edit(fn func(u *CacheUpdater[T, K])) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrSourceDisposed
	}

	fn(&CacheUpdater[T, K]{source: s})

	cs := s.state.CaptureChanges()
	if cs.IsEmpty() {
		return nil
	}
	for _, observer := range s.snapshotLocked() {
		observer.OnNext(cs)
	}
	return nil
}

// snapshotLocked copies the subscriber list in registration order. Callers
// hold s.mu
func (s *SourceCache[T, K]) snapshotLocked() []stream.Observer[changeset.ChangeSet[T, K]] {
	ids := make([]uint64, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	// Registration order keeps delivery deterministic
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	observers := make([]stream.Observer[changeset.ChangeSet[T, K]], 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.subscribers[id])
	}
	return observers
}

// Connect returns the change-set stream of this source. A new subscriber
// first receives the current state as a change set of Adds, then every
// subsequent transactional change set
func (s *SourceCache[T, K]) Connect() stream.Observable[changeset.ChangeSet[T, K]] {
	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[T, K]]) stream.Disposable {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			observer.OnComplete()
			return stream.Nop()
		}

		var initial []changeset.Change[T, K]
		s.state.ForEach(func(key K, value T) bool {
			initial = append(initial, changeset.NewChange(changeset.Add, key, value))
			return true
		})

		id := s.nextID
		s.nextID++
		s.subscribers[id] = observer

		if len(initial) > 0 {
			observer.OnNext(changeset.New(initial))
		}
		s.mu.Unlock()

		return stream.NewDisposable(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	})
}

// Watch returns the stream of changes touching one key. A subscriber first
// receives an Add carrying the current value when the key is present
func (s *SourceCache[T, K]) Watch(key K) stream.Observable[changeset.Change[T, K]] {
	return stream.Create(func(observer stream.Observer[changeset.Change[T, K]]) stream.Disposable {
		inner := stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				for _, change := range cs.Changes() {
					if change.Key == key {
						observer.OnNext(change)
					}
				}
			},
			observer.OnError,
			observer.OnComplete,
		)
		return s.Connect().Subscribe(inner)
	})
}

// Lookup returns the value for a key, or an absent Optional when missing
func (s *SourceCache[T, K]) Lookup(key K) optional.Optional[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Lookup(key)
}

// Count returns the number of items
func (s *SourceCache[T, K]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Len()
}

// Keys returns the keys in insertion order
func (s *SourceCache[T, K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Keys()
}

// Items returns the values in insertion order
func (s *SourceCache[T, K]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Items()
}

// KeyOf returns the key the source derives for an item
func (s *SourceCache[T, K]) KeyOf(item T) K {
	return s.keySelector(item)
}

// Dispose completes every subscriber and rejects further edits. Disposing
// twice is a no-op
func (s *SourceCache[T, K]) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	observers := s.snapshotLocked()
	s.subscribers = make(map[uint64]stream.Observer[changeset.ChangeSet[T, K]])
	s.mu.Unlock()

	for _, observer := range observers {
		observer.OnComplete()
	}
}

// CacheUpdater is the mutation surface handed to Edit callbacks. It is only
// valid for the duration of the callback
type CacheUpdater[T any, K comparable] struct {
	source *SourceCache[T, K]
}

// AddOrUpdate writes an item under its derived key
func (u *CacheUpdater[T, K]) AddOrUpdate(item T) {
	u.source.state.AddOrUpdate(item, u.source.keySelector(item))
}

// Load writes a batch of items
func (u *CacheUpdater[T, K]) Load(items []T) {
	for _, item := range items {
		u.AddOrUpdate(item)
	}
}

// Remove removes an item by its derived key
func (u *CacheUpdater[T, K]) Remove(item T) {
	u.source.state.Remove(u.source.keySelector(item))
}

// RemoveKey removes the entry for a key. Removing an absent key records
// nothing
func (u *CacheUpdater[T, K]) RemoveKey(key K) {
	u.source.state.Remove(key)
}

// RemoveKeys removes the entries for a batch of keys
func (u *CacheUpdater[T, K]) RemoveKeys(keys []K) {
	for _, key := range keys {
		u.source.state.Remove(key)
	}
}

// Refresh signals that observable properties of the value for a key changed
func (u *CacheUpdater[T, K]) Refresh(key K) {
	u.source.state.Refresh(key)
}

// RefreshAll signals a refresh for every present key
func (u *CacheUpdater[T, K]) RefreshAll() {
	for _, key := range u.source.state.Keys() {
		u.source.state.Refresh(key)
	}
}

// Clear removes every entry
func (u *CacheUpdater[T, K]) Clear() {
	u.source.state.Clear()
}

// Lookup returns the value for a key as currently staged in the edit
func (u *CacheUpdater[T, K]) Lookup(key K) optional.Optional[T] {
	return u.source.state.Lookup(key)
}

// Count returns the number of items as currently staged in the edit
func (u *CacheUpdater[T, K]) Count() int {
	return u.source.state.Len()
}

// Keys returns the staged keys in insertion order
func (u *CacheUpdater[T, K]) Keys() []K {
	return u.source.state.Keys()
}

// Items returns the staged values in insertion order
func (u *CacheUpdater[T, K]) Items() []T {
	return u.source.state.Items()
}
