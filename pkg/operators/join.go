package operators

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// joinCore is the plumbing shared by the join operators: mirrors for both
// sides (the right one re-keyed to the left key space), a result cache, and
// completion tracking across the two upstreams. Both upstreams are
// synchronized on one lock, so reactions observe a total order
type joinCore[L any, R any, D any, KL comparable] struct {
	left   *cache.Cache[L, KL]
	right  *cache.Cache[R, KL]
	result *cache.ChangeAwareCache[D, KL]
	g      *gate[changeset.ChangeSet[D, KL]]

	leftDone  bool
	rightDone bool
}

// newJoinCore creates empty join state
func newJoinCore[L any, R any, D any, KL comparable](observer stream.Observer[changeset.ChangeSet[D, KL]]) *joinCore[L, R, D, KL] {
	return &joinCore[L, R, D, KL]{
		left:   cache.New[L, KL](),
		right:  cache.New[R, KL](),
		result: cache.NewChangeAware[D, KL](),
		g:      &gate[changeset.ChangeSet[D, KL]]{observer: observer},
	}
}

// emit captures and forwards the net effect of a reaction
func (j *joinCore[L, R, D, KL]) emit() {
	if captured := j.result.CaptureChanges(); !captured.IsEmpty() {
		j.g.next(captured)
	}
}

// completeSide marks one upstream complete and completes downstream when
// both are done
func (j *joinCore[L, R, D, KL]) completeSide(left bool) {
	if left {
		j.leftDone = true
	} else {
		j.rightDone = true
	}
	if j.leftDone && j.rightDone {
		j.g.complete()
	}
}

// rekeyedRight walks a right-side change set, maintaining the re-keyed right
// mirror and invoking react for every touched left-space key. An update
// whose item moved to a different left key is treated as a removal at the
// old key followed by an addition at the new one
func rekeyedRight[L any, R any, D any, KL comparable, KR comparable](
	j *joinCore[L, R, D, KL],
	rightKey func(R) KL,
	cs changeset.ChangeSet[R, KR],
	react func(key KL, reason changeset.ChangeReason),
) {
	for _, change := range cs.Changes() {
		switch change.Reason {
		case changeset.Add, changeset.Update:
			key := rightKey(change.Current)
			if prev, ok := change.Previous.Value(); ok {
				if prevKey := rightKey(prev); prevKey != key {
					j.right.Remove(prevKey)
					react(prevKey, changeset.Remove)
				}
			}
			j.right.AddOrUpdate(change.Current, key)
			react(key, change.Reason)
		case changeset.Remove:
			key := rightKey(change.Current)
			j.right.Remove(key)
			react(key, changeset.Remove)
		case changeset.Refresh:
			react(rightKey(change.Current), changeset.Refresh)
		}
	}
}

// subscribeJoin wires both upstreams through one lock and returns the
// composite teardown
func subscribeJoin[L any, R any, D any, KL comparable, KR comparable](
	j *joinCore[L, R, D, KL],
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	onLeft func(cs changeset.ChangeSet[L, KL]),
	onRight func(cs changeset.ChangeSet[R, KR]),
) stream.Disposable {
	var mu sync.Mutex

	leftSub := stream.Synchronize(left, &mu).Subscribe(stream.NewObserver(
		func(cs changeset.ChangeSet[L, KL]) {
			onLeft(cs)
			j.emit()
		},
		j.g.fail,
		func() { j.completeSide(true) },
	))
	rightSub := stream.Synchronize(right, &mu).Subscribe(stream.NewObserver(
		func(cs changeset.ChangeSet[R, KR]) {
			onRight(cs)
			j.emit()
		},
		j.g.fail,
		func() { j.completeSide(false) },
	))

	return stream.NewComposite(
		leftSub,
		rightSub,
		stream.NewDisposable(func() {
			mu.Lock()
			j.g.close()
			mu.Unlock()
		}),
	)
}

// LeftJoin joins two keyed streams on the left key space. The result holds
// exactly the keys of the left side; the right side is optional and items
// are matched through rightKey
func LeftJoin[L any, R any, D any, KL comparable, KR comparable](
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	rightKey func(R) KL,
	selector func(key KL, left L, right optional.Optional[R]) D,
) (stream.Observable[changeset.ChangeSet[D, KL]], error) {
	if left == nil || right == nil {
		return nil, stream.ErrNilSource
	}
	if rightKey == nil || selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[D, KL]]) stream.Disposable {
		j := newJoinCore[L, R, D, KL](observer)

		onLeft := func(cs changeset.ChangeSet[L, KL]) {
			for _, change := range cs.Changes() {
				switch change.Reason {
				case changeset.Add, changeset.Update:
					j.left.AddOrUpdate(change.Current, change.Key)
					j.result.AddOrUpdate(selector(change.Key, change.Current, j.right.Lookup(change.Key)), change.Key)
				case changeset.Remove:
					j.left.Remove(change.Key)
					j.result.Remove(change.Key)
				case changeset.Refresh:
					j.result.Refresh(change.Key)
				}
			}
		}

		onRight := func(cs changeset.ChangeSet[R, KR]) {
			rekeyedRight(j, rightKey, cs, func(key KL, reason changeset.ChangeReason) {
				switch reason {
				case changeset.Add, changeset.Update, changeset.Remove:
					if l, ok := j.left.Lookup(key).Value(); ok {
						j.result.AddOrUpdate(selector(key, l, j.right.Lookup(key)), key)
					} else {
						j.result.Remove(key)
					}
				case changeset.Refresh:
					j.result.Refresh(key)
				}
			})
		}

		return subscribeJoin(j, left, right, onLeft, onRight)
	}), nil
}

// InnerJoin joins two keyed streams, keeping only keys present on both sides
func InnerJoin[L any, R any, D any, KL comparable, KR comparable](
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	rightKey func(R) KL,
	selector func(key KL, left L, right R) D,
) (stream.Observable[changeset.ChangeSet[D, KL]], error) {
	if left == nil || right == nil {
		return nil, stream.ErrNilSource
	}
	if rightKey == nil || selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[D, KL]]) stream.Disposable {
		j := newJoinCore[L, R, D, KL](observer)

		reconcile := func(key KL) {
			l, hasLeft := j.left.Lookup(key).Value()
			r, hasRight := j.right.Lookup(key).Value()
			if hasLeft && hasRight {
				j.result.AddOrUpdate(selector(key, l, r), key)
			} else {
				j.result.Remove(key)
			}
		}

		onLeft := func(cs changeset.ChangeSet[L, KL]) {
			for _, change := range cs.Changes() {
				switch change.Reason {
				case changeset.Add, changeset.Update:
					j.left.AddOrUpdate(change.Current, change.Key)
					reconcile(change.Key)
				case changeset.Remove:
					j.left.Remove(change.Key)
					j.result.Remove(change.Key)
				case changeset.Refresh:
					j.result.Refresh(change.Key)
				}
			}
		}

		onRight := func(cs changeset.ChangeSet[R, KR]) {
			rekeyedRight(j, rightKey, cs, func(key KL, reason changeset.ChangeReason) {
				switch reason {
				case changeset.Add, changeset.Update, changeset.Remove:
					reconcile(key)
				case changeset.Refresh:
					j.result.Refresh(key)
				}
			})
		}

		return subscribeJoin(j, left, right, onLeft, onRight)
	}), nil
}

// RightJoin joins two keyed streams on the left key space, keeping exactly
// the keys the right side carries; the left side is optional
func RightJoin[L any, R any, D any, KL comparable, KR comparable](
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	rightKey func(R) KL,
	selector func(key KL, left optional.Optional[L], right R) D,
) (stream.Observable[changeset.ChangeSet[D, KL]], error) {
	if left == nil || right == nil {
		return nil, stream.ErrNilSource
	}
	if rightKey == nil || selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[D, KL]]) stream.Disposable {
		j := newJoinCore[L, R, D, KL](observer)

		onLeft := func(cs changeset.ChangeSet[L, KL]) {
			for _, change := range cs.Changes() {
				switch change.Reason {
				case changeset.Add, changeset.Update:
					j.left.AddOrUpdate(change.Current, change.Key)
					if r, ok := j.right.Lookup(change.Key).Value(); ok {
						j.result.AddOrUpdate(selector(change.Key, optional.Some(change.Current), r), change.Key)
					}
				case changeset.Remove:
					j.left.Remove(change.Key)
					if r, ok := j.right.Lookup(change.Key).Value(); ok {
						j.result.AddOrUpdate(selector(change.Key, optional.None[L](), r), change.Key)
					}
				case changeset.Refresh:
					j.result.Refresh(change.Key)
				}
			}
		}

		onRight := func(cs changeset.ChangeSet[R, KR]) {
			rekeyedRight(j, rightKey, cs, func(key KL, reason changeset.ChangeReason) {
				switch reason {
				case changeset.Add, changeset.Update:
					r, _ := j.right.Lookup(key).Value()
					j.result.AddOrUpdate(selector(key, j.left.Lookup(key), r), key)
				case changeset.Remove:
					j.result.Remove(key)
				case changeset.Refresh:
					j.result.Refresh(key)
				}
			})
		}

		return subscribeJoin(j, left, right, onLeft, onRight)
	}), nil
}

// FullJoin joins two keyed streams keeping keys present on either side;
// both sides reach the selector as optionals
func FullJoin[L any, R any, D any, KL comparable, KR comparable](
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	rightKey func(R) KL,
	selector func(key KL, left optional.Optional[L], right optional.Optional[R]) D,
) (stream.Observable[changeset.ChangeSet[D, KL]], error) {
	if left == nil || right == nil {
		return nil, stream.ErrNilSource
	}
	if rightKey == nil || selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[D, KL]]) stream.Disposable {
		j := newJoinCore[L, R, D, KL](observer)

		reconcile := func(key KL) {
			l := j.left.Lookup(key)
			r := j.right.Lookup(key)
			if !l.HasValue() && !r.HasValue() {
				j.result.Remove(key)
				return
			}
			j.result.AddOrUpdate(selector(key, l, r), key)
		}

		onLeft := func(cs changeset.ChangeSet[L, KL]) {
			for _, change := range cs.Changes() {
				switch change.Reason {
				case changeset.Add, changeset.Update:
					j.left.AddOrUpdate(change.Current, change.Key)
					reconcile(change.Key)
				case changeset.Remove:
					j.left.Remove(change.Key)
					reconcile(change.Key)
				case changeset.Refresh:
					j.result.Refresh(change.Key)
				}
			}
		}

		onRight := func(cs changeset.ChangeSet[R, KR]) {
			rekeyedRight(j, rightKey, cs, func(key KL, reason changeset.ChangeReason) {
				switch reason {
				case changeset.Add, changeset.Update, changeset.Remove:
					reconcile(key)
				case changeset.Refresh:
					j.result.Refresh(key)
				}
			})
		}

		return subscribeJoin(j, left, right, onLeft, onRight)
	}), nil
}
