package operators

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// Filter forwards only the items the predicate accepts. Refresh changes
// re-evaluate the predicate, so items whose observable properties drifted in
// or out of the filter are added or removed accordingly; items that stay in
// have the refresh forwarded
func Filter[T any, K comparable](
	src stream.Observable[changeset.ChangeSet[T, K]],
	predicate func(item T) bool,
) (stream.Observable[changeset.ChangeSet[T, K]], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	if predicate == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[T, K]]) stream.Disposable {
		var mu sync.Mutex
		result := cache.NewChangeAware[T, K]()
		g := &gate[changeset.ChangeSet[T, K]]{observer: observer}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add, changeset.Update:
						if predicate(change.Current) {
							result.AddOrUpdate(change.Current, change.Key)
						} else {
							result.Remove(change.Key)
						}
					case changeset.Remove:
						result.Remove(change.Key)
					case changeset.Refresh:
						matches := predicate(change.Current)
						switch {
						case matches && result.Contains(change.Key):
							result.Refresh(change.Key)
						case matches:
							result.AddOrUpdate(change.Current, change.Key)
						default:
							result.Remove(change.Key)
						}
					}
				}
				if captured := result.CaptureChanges(); !captured.IsEmpty() {
					g.next(captured)
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
