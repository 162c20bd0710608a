package changeset

import (
	"fmt"

	"github.com/mnohosten/laura-flow/pkg/optional"
)

// ChangeReason describes the kind of a keyed change
type ChangeReason int

const (
	// Add means the key was inserted
	Add ChangeReason = iota

	// Update means the value for an existing key was replaced
	Update

	// Remove means the key was deleted
	Remove

	// Refresh signals that observable properties of the value changed
	// without the value itself being replaced
	Refresh

	// Moved means the item changed position in an ordered view
	Moved
)

// String returns a human readable name for the reason
func (r ChangeReason) String() string {
	switch r {
	case Add:
		return "Add"
	case Update:
		return "Update"
	case Remove:
		return "Remove"
	case Refresh:
		return "Refresh"
	case Moved:
		return "Moved"
	default:
		return fmt.Sprintf("ChangeReason(%d)", int(r))
	}
}

// Change represents a single delta applied to a keyed collection
type Change[T any, K comparable] struct {
	// Reason describes the kind of change
	Reason ChangeReason

	// Key identifies the affected entry
	Key K

	// Current is the value after the change. For Remove it holds the
	// removed value
	Current T

	// Previous holds the value before an Update; absent for other reasons
	Previous optional.Optional[T]

	// CurrentIndex and PreviousIndex are positions in an ordered view.
	// They are -1 when no position information is available
	CurrentIndex  int
	PreviousIndex int
}

// NewChange creates a change without a previous value (Add, Remove, Refresh)
func NewChange[T any, K comparable](reason ChangeReason, key K, current T) Change[T, K] {
	return Change[T, K]{
		Reason:        reason,
		Key:           key,
		Current:       current,
		Previous:      optional.None[T](),
		CurrentIndex:  -1,
		PreviousIndex: -1,
	}
}

// NewUpdate creates an Update change carrying the replaced value
func NewUpdate[T any, K comparable](key K, current, previous T) Change[T, K] {
	return Change[T, K]{
		Reason:        Update,
		Key:           key,
		Current:       current,
		Previous:      optional.Some(previous),
		CurrentIndex:  -1,
		PreviousIndex: -1,
	}
}

// NewMoved creates a Moved change with both positions
func NewMoved[T any, K comparable](key K, current T, currentIndex, previousIndex int) Change[T, K] {
	return Change[T, K]{
		Reason:        Moved,
		Key:           key,
		Current:       current,
		Previous:      optional.None[T](),
		CurrentIndex:  currentIndex,
		PreviousIndex: previousIndex,
	}
}

// Validate checks that the change carries the fields its reason requires
func (c Change[T, K]) Validate() error {
	switch c.Reason {
	case Update:
		if !c.Previous.HasValue() {
			return fmt.Errorf("update change for key %v has no previous value", c.Key)
		}
	case Moved:
		if c.CurrentIndex < 0 || c.PreviousIndex < 0 {
			return fmt.Errorf("moved change for key %v is missing an index", c.Key)
		}
	}
	return nil
}

// String formats the change for diagnostics
func (c Change[T, K]) String() string {
	if prev, ok := c.Previous.Value(); ok {
		return fmt.Sprintf("%s %v: %v -> %v", c.Reason, c.Key, prev, c.Current)
	}
	return fmt.Sprintf("%s %v: %v", c.Reason, c.Key, c.Current)
}
