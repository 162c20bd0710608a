package operators

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// Transform projects each item through the selector, keeping the upstream
// key. A selector error terminates the stream like an upstream error.
// Refresh changes are forwarded without re-projecting
func Transform[T any, D any, K comparable](
	src stream.Observable[changeset.ChangeSet[T, K]],
	selector func(item T, key K) (D, error),
) (stream.Observable[changeset.ChangeSet[D, K]], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	if selector == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[D, K]]) stream.Disposable {
		var mu sync.Mutex
		result := cache.NewChangeAware[D, K]()
		g := &gate[changeset.ChangeSet[D, K]]{observer: observer}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add, changeset.Update:
						projected, err := selector(change.Current, change.Key)
						if err != nil {
							g.fail(err)
							return
						}
						result.AddOrUpdate(projected, change.Key)
					case changeset.Remove:
						result.Remove(change.Key)
					case changeset.Refresh:
						result.Refresh(change.Key)
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
