package stream

// DistinctUntilChanged suppresses consecutive values the equality predicate
// considers equal. A nil predicate is rejected at the factory boundary
func DistinctUntilChanged[T any](source Observable[T], eq func(a, b T) bool) (Observable[T], error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if eq == nil {
		return nil, ErrNilSelector
	}
	return Create(func(observer Observer[T]) Disposable {
		var (
			last    T
			hasLast bool
		)
		return source.Subscribe(NewObserver(
			func(value T) {
				if hasLast && eq(last, value) {
					return
				}
				last = value
				hasLast = true
				observer.OnNext(value)
			},
			observer.OnError,
			observer.OnComplete,
		))
	}), nil
}
