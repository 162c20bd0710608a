package changeset

// VirtualResponse describes the window a virtualizing consumer is showing
type VirtualResponse struct {
	// StartIndex is the first visible position
	StartIndex int

	// Size is the number of visible positions
	Size int
}

// VirtualChangeSet pairs a change set with the window it was produced for.
// It forwards counters and iteration to the wrapped set verbatim
type VirtualChangeSet[T any, K comparable] struct {
	set      ChangeSet[T, K]
	response VirtualResponse
}

// NewVirtual wraps a change set with a window response
func NewVirtual[T any, K comparable](set ChangeSet[T, K], response VirtualResponse) VirtualChangeSet[T, K] {
	return VirtualChangeSet[T, K]{set: set, response: response}
}

// Response returns the window description
func (v VirtualChangeSet[T, K]) Response() VirtualResponse {
	return v.response
}

// Changes returns the wrapped ordered changes
func (v VirtualChangeSet[T, K]) Changes() []Change[T, K] {
	return v.set.Changes()
}

// Count returns the wrapped total change count
func (v VirtualChangeSet[T, K]) Count() int { return v.set.Count() }

// IsEmpty reports whether the wrapped set is empty
func (v VirtualChangeSet[T, K]) IsEmpty() bool { return v.set.IsEmpty() }

// Adds returns the wrapped Add count
func (v VirtualChangeSet[T, K]) Adds() int { return v.set.Adds() }

// Updates returns the wrapped Update count
func (v VirtualChangeSet[T, K]) Updates() int { return v.set.Updates() }

// Removes returns the wrapped Remove count
func (v VirtualChangeSet[T, K]) Removes() int { return v.set.Removes() }

// Refreshes returns the wrapped Refresh count
func (v VirtualChangeSet[T, K]) Refreshes() int { return v.set.Refreshes() }

// Moves returns the wrapped Moved count
func (v VirtualChangeSet[T, K]) Moves() int { return v.set.Moves() }
