package changeset

import (
	"fmt"

	"github.com/mnohosten/laura-flow/pkg/optional"
)

// ListChangeReason describes the kind of an ordered-list change
type ListChangeReason int

const (
	// ListAdd means a single item was inserted
	ListAdd ListChangeReason = iota

	// ListAddRange means a contiguous block of items was inserted
	ListAddRange

	// ListReplace means the item at a position was replaced
	ListReplace

	// ListRemove means a single item was removed
	ListRemove

	// ListRemoveRange means a contiguous block of items was removed
	ListRemoveRange

	// ListRefresh signals a change of observable properties of an item
	ListRefresh

	// ListMoved means an item changed position
	ListMoved

	// ListClear means all items were removed at once
	ListClear
)

// String returns a human readable name for the reason
func (r ListChangeReason) String() string {
	switch r {
	case ListAdd:
		return "Add"
	case ListAddRange:
		return "AddRange"
	case ListReplace:
		return "Replace"
	case ListRemove:
		return "Remove"
	case ListRemoveRange:
		return "RemoveRange"
	case ListRefresh:
		return "Refresh"
	case ListMoved:
		return "Moved"
	case ListClear:
		return "Clear"
	default:
		return fmt.Sprintf("ListChangeReason(%d)", int(r))
	}
}

// isRange reports whether the reason carries a range payload
func (r ListChangeReason) isRange() bool {
	return r == ListAddRange || r == ListRemoveRange || r == ListClear
}

// ListChange represents a single delta applied to an ordered list. Item
// reasons populate Item; range reasons (AddRange, RemoveRange, Clear)
// populate Range
type ListChange[T any] struct {
	// Reason describes the kind of change
	Reason ListChangeReason

	// Item holds the payload for single-item reasons
	Item ItemChange[T]

	// Range holds the payload for range reasons
	Range RangeChange[T]
}

// ItemChange is the payload of a single-item list change
type ItemChange[T any] struct {
	// Current is the item after the change (the removed item for Remove)
	Current T

	// Previous holds the replaced item for Replace; absent otherwise
	Previous optional.Optional[T]

	// CurrentIndex is the position after the change
	CurrentIndex int

	// PreviousIndex is the position before the change; -1 when not applicable
	PreviousIndex int
}

// RangeChange is the payload of a range list change: a contiguous block of
// items and the index of the first one
type RangeChange[T any] struct {
	// Items is the contiguous block. Callers must not mutate the slice
	Items []T

	// Index is the position of the first item in the block
	Index int
}

// NewListChange creates a single-item change
func NewListChange[T any](reason ListChangeReason, current T, currentIndex int) ListChange[T] {
	return ListChange[T]{
		Reason: reason,
		Item: ItemChange[T]{
			Current:       current,
			Previous:      optional.None[T](),
			CurrentIndex:  currentIndex,
			PreviousIndex: -1,
		},
	}
}

// NewListReplace creates a Replace change carrying the replaced item
func NewListReplace[T any](current, previous T, index int) ListChange[T] {
	return ListChange[T]{
		Reason: ListReplace,
		Item: ItemChange[T]{
			Current:       current,
			Previous:      optional.Some(previous),
			CurrentIndex:  index,
			PreviousIndex: index,
		},
	}
}

// NewListMoved creates a Moved change with both positions
func NewListMoved[T any](item T, currentIndex, previousIndex int) ListChange[T] {
	return ListChange[T]{
		Reason: ListMoved,
		Item: ItemChange[T]{
			Current:       item,
			Previous:      optional.None[T](),
			CurrentIndex:  currentIndex,
			PreviousIndex: previousIndex,
		},
	}
}

// NewListRange creates a range change (AddRange, RemoveRange or Clear).
// The slice is retained; callers must not mutate it afterwards
func NewListRange[T any](reason ListChangeReason, items []T, index int) ListChange[T] {
	return ListChange[T]{
		Reason: reason,
		Range:  RangeChange[T]{Items: items, Index: index},
	}
}

// ItemCount returns the number of items affected by the change
func (c ListChange[T]) ItemCount() int {
	if c.Reason.isRange() {
		return len(c.Range.Items)
	}
	return 1
}

// ListChangeSet is a finite ordered sequence of list changes with summary
// counters. Counters count affected items, so a single AddRange of three
// items contributes three to Adds
type ListChangeSet[T any] struct {
	changes []ListChange[T]

	adds      int
	removes   int
	replaced  int
	refreshes int
	moves     int
	total     int
}

// NewList creates a list change set from an ordered slice of changes.
// The slice is retained; callers must not mutate it afterwards
func NewList[T any](changes []ListChange[T]) ListChangeSet[T] {
	cs := ListChangeSet[T]{changes: changes}
	for _, c := range changes {
		n := c.ItemCount()
		cs.total += n
		switch c.Reason {
		case ListAdd, ListAddRange:
			cs.adds += n
		case ListRemove, ListRemoveRange, ListClear:
			cs.removes += n
		case ListReplace:
			cs.replaced += n
		case ListRefresh:
			cs.refreshes += n
		case ListMoved:
			cs.moves += n
		}
	}
	return cs
}

// EmptyList returns the empty list change set sentinel
func EmptyList[T any]() ListChangeSet[T] {
	return ListChangeSet[T]{}
}

// Changes returns the ordered changes. Callers must not mutate the slice
func (cs ListChangeSet[T]) Changes() []ListChange[T] {
	return cs.changes
}

// Count returns the total number of affected items
func (cs ListChangeSet[T]) Count() int {
	return cs.total
}

// Len returns the number of change entries
func (cs ListChangeSet[T]) Len() int {
	return len(cs.changes)
}

// IsEmpty reports whether the change set carries no changes
func (cs ListChangeSet[T]) IsEmpty() bool {
	return len(cs.changes) == 0
}

// Adds returns the number of added items
func (cs ListChangeSet[T]) Adds() int { return cs.adds }

// Removes returns the number of removed items, including cleared ones
func (cs ListChangeSet[T]) Removes() int { return cs.removes }

// Replaced returns the number of replaced items
func (cs ListChangeSet[T]) Replaced() int { return cs.replaced }

// Refreshes returns the number of refreshed items
func (cs ListChangeSet[T]) Refreshes() int { return cs.refreshes }

// Moves returns the number of moved items
func (cs ListChangeSet[T]) Moves() int { return cs.moves }
