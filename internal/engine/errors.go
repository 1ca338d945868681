package engine

import "errors"

var (
	// ErrRetryExhausted means the optimistic-concurrency loop lost the
	// version race more times than the configured limit.
	ErrRetryExhausted = errors.New("progress update retries exhausted")
)
