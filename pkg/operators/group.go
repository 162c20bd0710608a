package operators

import (
	"sync"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// Group partitions a keyed stream by a group key. The output is keyed by
// group key and carries immutable group snapshots: every mutation of a
// group's membership publishes a fresh snapshot, and a group whose last
// member leaves is removed. Refresh changes re-derive the group key, so an
// item whose observable properties moved it between groups is regrouped
func Group[T any, K comparable, G comparable](
	src stream.Observable[changeset.ChangeSet[T, K]],
	groupKey func(item T) G,
) (stream.Observable[changeset.ChangeSet[*cache.Grouping[T, K, G], G]], error) {
	if src == nil {
		return nil, stream.ErrNilSource
	}
	if groupKey == nil {
		return nil, stream.ErrNilSelector
	}

	return stream.Create(func(observer stream.Observer[changeset.ChangeSet[*cache.Grouping[T, K, G], G]]) stream.Disposable {
		var mu sync.Mutex
		groups := make(map[G]*cache.Cache[T, K])
		memberGroup := make(map[K]G)
		result := cache.NewChangeAware[*cache.Grouping[T, K, G], G]()
		g := &gate[changeset.ChangeSet[*cache.Grouping[T, K, G], G]]{observer: observer}

		// publish refreshes the snapshot of a group, removing an empty one
		publish := func(key G) {
			members, exists := groups[key]
			if !exists || members.Len() == 0 {
				delete(groups, key)
				result.Remove(key)
				return
			}
			result.AddOrUpdate(cache.GroupingOf[T, K, G](key, members), key)
		}

		// drop detaches an item from its current group, if any
		drop := func(itemKey K) (G, bool) {
			groupID, exists := memberGroup[itemKey]
			if !exists {
				return groupID, false
			}
			delete(memberGroup, itemKey)
			if members, ok := groups[groupID]; ok {
				members.Remove(itemKey)
			}
			return groupID, true
		}

		// place assigns an item to the group its key derives
		place := func(itemKey K, item T) G {
			groupID := groupKey(item)
			members, exists := groups[groupID]
			if !exists {
				members = cache.New[T, K]()
				groups[groupID] = members
			}
			members.AddOrUpdate(item, itemKey)
			memberGroup[itemKey] = groupID
			return groupID
		}

		sub := stream.Synchronize(src, &mu).Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				touched := make(map[G]bool)
				for _, change := range cs.Changes() {
					switch change.Reason {
					case changeset.Add, changeset.Update:
						if prevGroup, had := drop(change.Key); had {
							touched[prevGroup] = true
						}
						touched[place(change.Key, change.Current)] = true
					case changeset.Remove:
						if prevGroup, had := drop(change.Key); had {
							touched[prevGroup] = true
						}
					case changeset.Refresh:
						groupID, exists := memberGroup[change.Key]
						if !exists {
							continue
						}
						current, ok := groups[groupID].Lookup(change.Key).Value()
						if !ok {
							continue
						}
						if next := groupKey(current); next != groupID {
							drop(change.Key)
							touched[groupID] = true
							touched[place(change.Key, current)] = true
						} else if result.Contains(groupID) {
							result.Refresh(groupID)
						}
					}
				}
				for groupID := range touched {
					publish(groupID)
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

// FullJoinMany joins a left stream against the right stream grouped by the
// left key, so the selector sees the whole matching group. Left keys with
// no right matches receive an empty group
func FullJoinMany[L any, R any, D any, KL comparable, KR comparable](
	left stream.Observable[changeset.ChangeSet[L, KL]],
	right stream.Observable[changeset.ChangeSet[R, KR]],
	rightKey func(R) KL,
	selector func(key KL, left optional.Optional[L], rightGroup *cache.Grouping[R, KR, KL]) D,
) (stream.Observable[changeset.ChangeSet[D, KL]], error) {
	if left == nil || right == nil {
		return nil, stream.ErrNilSource
	}
	if rightKey == nil || selector == nil {
		return nil, stream.ErrNilSelector
	}

	grouped, err := Group(right, rightKey)
	if err != nil {
		return nil, err
	}
	return FullJoin(left, grouped,
		func(group *cache.Grouping[R, KR, KL]) KL {
			return group.Key()
		},
		func(key KL, l optional.Optional[L], group optional.Optional[*cache.Grouping[R, KR, KL]]) D {
			return selector(key, l, group.ValueOr(cache.EmptyGrouping[R, KR, KL](key)))
		},
	)
}
