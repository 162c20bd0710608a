package stream

// Observer receives pushed values. Implementations get at most one terminal
// call (OnError or OnComplete) and no further calls after it
type Observer[T any] interface {
	// OnNext delivers the next value
	OnNext(value T)

	// OnError delivers a terminal error
	OnError(err error)

	// OnComplete signals normal termination
	OnComplete()
}

// Observable is a push-based stream. Subscribe registers an observer and
// returns a disposable that detaches it. Delivery into one observer is
// serial: no overlapping calls
type Observable[T any] interface {
	Subscribe(observer Observer[T]) Disposable
}

// funcObserver adapts plain functions to the Observer interface
type funcObserver[T any] struct {
	onNext     func(T)
	onError    func(error)
	onComplete func()
}

// NewObserver builds an observer from callbacks. Nil callbacks are ignored
func NewObserver[T any](onNext func(T), onError func(error), onComplete func()) Observer[T] {
	return &funcObserver[T]{onNext: onNext, onError: onError, onComplete: onComplete}
}

// OnNext delivers the next value to the onNext callback
func (f *funcObserver[T]) OnNext(value T) {
	if f.onNext != nil {
		f.onNext(value)
	}
}

// OnError delivers a terminal error to the onError callback
func (f *funcObserver[T]) OnError(err error) {
	if f.onError != nil {
		f.onError(err)
	}
}

// OnComplete signals normal termination to the onComplete callback
func (f *funcObserver[T]) OnComplete() {
	if f.onComplete != nil {
		f.onComplete()
	}
}

// observableFunc adapts a subscribe function to the Observable interface
type observableFunc[T any] struct {
	subscribe func(Observer[T]) Disposable
}

// Create builds an observable from a subscribe function. The function runs
// once per subscriber; factories return fresh state per subscription
func Create[T any](subscribe func(observer Observer[T]) Disposable) Observable[T] {
	return &observableFunc[T]{subscribe: subscribe}
}

// Subscribe invokes the subscribe function for the observer
func (o *observableFunc[T]) Subscribe(observer Observer[T]) Disposable {
	return o.subscribe(observer)
}
