package operators

import (
	"cmp"
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// Number constrains summable value types
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Max tracks the largest selected value across the source. It emits the
// current maximum after every change that affects it, emptyValue once the
// source drains, and never two consecutive equal values
func Max[T any, K comparable, R cmp.Ordered](
	src stream.Observable[changeset.ChangeSet[T, K]],
	selector func(item T) R,
	emptyValue R,
) (stream.Observable[R], error) {
	return extremum(src, selector, emptyValue, func(candidate, current R) bool {
		return candidate > current
	})
}

// Min tracks the smallest selected value across the source, with the same
// emission rules as Max
func Min[T any, K comparable, R cmp.Ordered](
	src stream.Observable[changeset.ChangeSet[T, K]],
	selector func(item T) R,
	emptyValue R,
) (stream.Observable[R], error) {
	return extremum(src, selector, emptyValue, func(candidate, current R) bool {
		return candidate < current
	})
}

// extremum is the shared running-aggregate fold. The mirror is brought to
// the post-change state first, so a reset triggered mid-batch rescans state
// that already includes the rest of the batch. Removing the current
// extremum, updating it away, or refreshing any item forces a rescan
func extremum[T any, K comparable, R cmp.Ordered](
	src stream.Observable[changeset.ChangeSet[T, K]],
	selector func(item T) R,
	emptyValue R,
	better func(candidate, current R) bool,
) (stream.Observable[R], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	if selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[R]) stream.Disposable {
		var mu sync.Mutex
		mirror := cache.New[T, K]()
		cur := optional.None[R]()
		var last R
		emitted := false
		g := &gate[R]{observer: observer}

		rescan := func() {
			cur = optional.None[R]()
			mirror.ForEach(func(_ K, item T) bool {
				value := selector(item)
				if current, ok := cur.Value(); !ok || better(value, current) {
					cur = optional.Some(value)
				}
				return true
			})
		}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add, changeset.Update:
						mirror.AddOrUpdate(change.Current, change.Key)
					case changeset.Remove:
						mirror.Remove(change.Key)
					}
				}

				needsReset := false
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add:
						value := selector(change.Current)
						if current, ok := cur.Value(); !ok || better(value, current) {
							cur = optional.Some(value)
						}
					case changeset.Update:
						prev := change.Previous.MustValue()
						if current, ok := cur.Value(); ok && selector(prev) == current {
							needsReset = true
							break
						}
						value := selector(change.Current)
						if current, ok := cur.Value(); !ok || better(value, current) {
							cur = optional.Some(value)
						}
					case changeset.Remove:
						if current, ok := cur.Value(); ok && selector(change.Current) == current {
							needsReset = true
							break
						}
					case changeset.Refresh:
						// The selected value may have drifted with the item
						needsReset = true
					}
					if needsReset {
						break
					}
				}
				if needsReset {
					rescan()
				}

				value := cur.ValueOr(emptyValue)
				if !emitted || value != last {
					emitted = true
					last = value
					g.next(value)
				}
			},
			g.fail,
			g.complete,
		))

		return stream.NewComposite(sub, stream.NewDisposable(func() {
			mu.Lock()
			g.close()
			mu.Unlock()
		}))
	}), nil
}

// Count emits the number of items in the source after every change set,
// suppressing consecutive duplicates
func Count[T any, K comparable](
	src stream.Observable[changeset.ChangeSet[T, K]],
) (stream.Observable[int], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}

	return stream.Create(func(observer stream.Observer[int]) stream.Disposable {
		var mu sync.Mutex
		count := 0
		last := -1
		g := &gate[int]{observer: observer}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				count += cs.Adds() - cs.Removes()
				if count != last {
					last = count
					g.next(count)
				}
			},
			g.fail,
			g.complete,
		))

		return stream.NewComposite(sub, stream.NewDisposable(func() {
			mu.Lock()
			g.close()
			mu.Unlock()
		}))
	}), nil
}

// Sum emits the running total of selected values, suppressing consecutive
// duplicates. A Refresh rescans because the selected value may have drifted
func Sum[T any, K comparable, R Number](
	src stream.Observable[changeset.ChangeSet[T, K]],
	selector func(item T) R,
) (stream.Observable[R], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	if selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[R]) stream.Disposable {
		var mu sync.Mutex
		mirror := cache.New[T, K]()
		var total, last R
		emitted := false
		g := &gate[R]{observer: observer}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				rescan := false
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add:
						mirror.AddOrUpdate(change.Current, change.Key)
						total += selector(change.Current)
					case changeset.Update:
						mirror.AddOrUpdate(change.Current, change.Key)
						total += selector(change.Current) - selector(change.Previous.MustValue())
					case changeset.Remove:
						mirror.Remove(change.Key)
						total -= selector(change.Current)
					case changeset.Refresh:
						rescan = true
					}
				}
				if rescan {
					total = 0
					mirror.ForEach(func(_ K, item T) bool {
						total += selector(item)
						return true
					})
				}
				if !emitted || total != last {
					emitted = true
					last = total
					g.next(total)
				}
			},
			g.fail,
			g.complete,
		))

		return stream.NewComposite(sub, stream.NewDisposable(func() {
			mu.Lock()
			g.close()
			mu.Unlock()
		}))
	}), nil
}
