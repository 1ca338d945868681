package queue

import "errors"

var (
	// ErrClosed is returned by consumers observing a closed queue.
	ErrClosed = errors.New("queue closed")
)
