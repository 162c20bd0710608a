package operators

import (
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// mergeChild tracks one child of MergeMany: its subscription and the items
// it currently contributes to the merged result. The contributed list is
// what makes withdrawal possible when the child leaves the parent
type mergeChild[R comparable] struct {
	sub         stream.Disposable
	contributed []R
	completed   bool
}

// mergeMany is the serialized state behind MergeMany
type mergeMany[T any, R comparable] struct {
	children   []*mergeChild[R]
	merged     []R
	out        []changeset.ListChange[R]
	g          *gate[changeset.ListChangeSet[R]]
	parentDone bool
}

// addItem appends an item to the merged result and records the change
func (m *mergeMany[T, R]) addItem(child *mergeChild[R], item R) {
	m.merged = append(m.merged, item)
	child.contributed = append(child.contributed, item)
	m.out = append(m.out, changeset.NewListChange(changeset.ListAdd, item, len(m.merged)-1))
}

// removeItem withdraws one occurrence of an item contributed by the child
func (m *mergeMany[T, R]) removeItem(child *mergeChild[R], item R) {
	for i, candidate := range child.contributed {
		if candidate == item {
			child.contributed = append(child.contributed[:i], child.contributed[i+1:]...)
			break
		}
	}
	for i, candidate := range m.merged {
		if candidate == item {
			m.merged = append(m.merged[:i], m.merged[i+1:]...)
			m.out = append(m.out, changeset.NewListChange(changeset.ListRemove, item, i))
			return
		}
	}
}

// withdraw removes everything the child currently contributes. Removing a
// child from the parent must erase its items from the merged view
func (m *mergeMany[T, R]) withdraw(child *mergeChild[R]) {
	items := child.contributed
	child.contributed = nil
	for _, item := range items {
		for i, candidate := range m.merged {
			if candidate == item {
				m.merged = append(m.merged[:i], m.merged[i+1:]...)
				m.out = append(m.out, changeset.NewListChange(changeset.ListRemove, item, i))
				break
			}
		}
	}
}

// react folds one change set of a child into the merged result
func (m *mergeMany[T, R]) react(child *mergeChild[R], cs changeset.ListChangeSet[R]) {
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.ListAdd:
			m.addItem(child, change.Item.Current)
		case changeset.ListAddRange:
			for _, item := range change.Range.Items {
				m.addItem(child, item)
			}
		case changeset.ListRemove:
			m.removeItem(child, change.Item.Current)
		case changeset.ListRemoveRange:
			for _, item := range change.Range.Items {
				m.removeItem(child, item)
			}
		case changeset.ListReplace:
			if prev, ok := change.Item.Previous.Value(); ok {
				m.removeItem(child, prev)
			}
			m.addItem(child, change.Item.Current)
		case changeset.ListClear:
			m.withdraw(child)
		}
	}
	m.emit()
}

// emit flushes the pending downstream changes as one list change set
func (m *mergeMany[T, R]) emit() {
	if len(m.out) == 0 {
		return
	}
	cs := changeset.NewList(m.out)
	m.out = nil
	m.g.next(cs)
}

// removeChild disposes a child and withdraws its contributions
func (m *mergeMany[T, R]) removeChild(index int) {
	if index < 0 || index >= len(m.children) {
		return
	}
	child := m.children[index]
	m.children = append(m.children[:index], m.children[index+1:]...)
	child.sub.Dispose()
	m.withdraw(child)
	m.emit()
}

// teardown disposes every child subscription
func (m *mergeMany[T, R]) teardown() {
	for _, child := range m.children {
		if child.sub != nil {
			child.sub.Dispose()
		}
	}
}

// maybeComplete completes downstream once the parent and every child stream
// have completed
func (m *mergeMany[T, R]) maybeComplete() {
	if !m.parentDone {
		return
	}
	for _, child := range m.children {
		if !child.completed {
			return
		}
	}
	m.g.complete()
}

// MergeMany flattens the streams selected from each item of a parent list
// into one merged stream. A child removed from the parent is unsubscribed
// and every item it contributed is withdrawn from the merged result
func MergeMany[T any, R comparable](
	parent stream.Observable[changeset.ListChangeSet[T]],
	selector func(item T) stream.Observable[changeset.ListChangeSet[R]],
) (stream.Observable[changeset.ListChangeSet[R]], error) {
	if parent == nil {
		return nil, stream.ErrNilSource
	}
	if selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ListChangeSet[R]]) stream.Disposable {
		d := &dispatcher{}
		m := &mergeMany[T, R]{g: &gate[changeset.ListChangeSet[R]]{observer: observer}}

		addChild := func(index int, item T) {
			child := &mergeChild[R]{}
			if index < 0 || index > len(m.children) {
				index = len(m.children)
			}
			m.children = append(m.children, nil)
			copy(m.children[index+1:], m.children[index:])
			m.children[index] = child

			child.sub = selector(item).Subscribe(through(d, stream.NewObserver(
				func(cs changeset.ListChangeSet[R]) {
					m.react(child, cs)
				},
				func(err error) {
					m.g.fail(err)
					m.teardown()
				},
				func() {
					child.completed = true
					m.maybeComplete()
				},
			)))
		}

		parentSub := parent.Subscribe(through(d, stream.NewObserver(
			func(cs changeset.ListChangeSet[T]) {
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.ListAdd:
						addChild(change.Item.CurrentIndex, change.Item.Current)
					case changeset.ListAddRange:
						for i, item := range change.Range.Items {
							addChild(change.Range.Index+i, item)
						}
					case changeset.ListRemove:
						m.removeChild(change.Item.CurrentIndex)
					case changeset.ListRemoveRange:
						for range change.Range.Items {
							m.removeChild(change.Range.Index)
						}
					case changeset.ListReplace:
						m.removeChild(change.Item.CurrentIndex)
						addChild(change.Item.CurrentIndex, change.Item.Current)
					case changeset.ListMoved:
						from, to := change.Item.PreviousIndex, change.Item.CurrentIndex
						if from >= 0 && from < len(m.children) && to >= 0 && to < len(m.children) && from != to {
							child := m.children[from]
							m.children = append(m.children[:from], m.children[from+1:]...)
							m.children = append(m.children, nil)
							copy(m.children[to+1:], m.children[to:len(m.children)-1])
							m.children[to] = child
						}
					case changeset.ListClear:
						for len(m.children) > 0 {
							m.removeChild(0)
						}
					}
				}
			},
			func(err error) {
				m.g.fail(err)
				m.teardown()
			},
			func() {
				m.parentDone = true
				m.maybeComplete()
			},
		)))

		return stream.NewComposite(
			parentSub,
			stream.NewDisposable(m.teardown),
			stream.NewDisposable(func() {
				d.enqueue(m.g.close)
			}),
		)
	}), nil
}
