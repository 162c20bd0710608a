package source

// EditDiff replaces the source contents with the given items in a single
// transactional edit. Keys present before but not after are removed first;
// new keys are added and surviving keys whose values the equality predicate
// rejects are updated. Key-set differencing uses key equality only; eq
// decides whether a surviving key counts as updated
func (s *SourceCache[T, K]) EditDiff(items []T, eq func(a, b T) bool) error {
	return s.Edit(func(u *CacheUpdater[T, K]) {
		incoming := make(map[K]T, len(items))
		order := make([]K, 0, len(items))
		for _, item := range items {
			key := s.keySelector(item)
			if _, seen := incoming[key]; !seen {
				order = append(order, key)
			}
			incoming[key] = item
		}

		// Removes first to bound intermediate size
		for _, key := range u.Keys() {
			if _, keep := incoming[key]; !keep {
				u.RemoveKey(key)
			}
		}

		for _, key := range order {
			item := incoming[key]
			if original, exists := u.Lookup(key).Value(); exists {
				if eq != nil && eq(original, item) {
					continue
				}
			}
			u.AddOrUpdate(item)
		}
	})
}
