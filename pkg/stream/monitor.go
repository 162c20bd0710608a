package stream

import "fmt"

// Status describes where a monitored stream is in its lifecycle
type Status int

const (
	// StatusPending means nothing has been received yet
	StatusPending Status = iota

	// StatusLoaded means at least one value has been received
	StatusLoaded

	// StatusErrored means the stream terminated with an error
	StatusErrored

	// StatusCompleted means the stream terminated normally
	StatusCompleted
)

// String returns a human readable name for the status
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusLoaded:
		return "Loaded"
	case StatusErrored:
		return "Errored"
	case StatusCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Monitor surfaces the lifecycle of a stream as a status stream. The output
// starts with the current status on subscription, emits on transitions,
// suppresses consecutive duplicates, and for an errored source emits the
// Errored status before propagating the error
func Monitor[T any](source Observable[T]) Observable[Status] {
	return Create(func(observer Observer[Status]) Disposable {
		status := StatusPending
		emit := func(next Status) {
			if next == status {
				return
			}
			status = next
			observer.OnNext(next)
		}

		observer.OnNext(status)

		return source.Subscribe(NewObserver(
			func(T) {
				emit(StatusLoaded)
			},
			func(err error) {
				emit(StatusErrored)
				observer.OnError(err)
			},
			func() {
				if status != StatusErrored {
					emit(StatusCompleted)
				}
				observer.OnComplete()
			},
		))
	})
}
