package stream

import "errors"

var (
	// ErrNilSource is returned when an operator factory receives a nil upstream
	ErrNilSource = errors.New("source observable is nil")

	// ErrNilSelector is returned when an operator factory receives a nil selector
	ErrNilSelector = errors.New("selector is nil")

	// ErrStreamClosed is returned when emitting into a terminated stream
	ErrStreamClosed = errors.New("stream is closed")
)
